package encode

import (
	"strconv"
	"strings"
	"time"
)

// Snapshot is one normalized progress observation from the encoder's
// key-value stream.
type Snapshot struct {
	Stage            string
	Pass             int
	ProcessedSeconds float64
	Percent          float64
	Frame            int64
	FPS              float64
	BitrateKbps      float64
	Speed            float64
	ETASeconds       float64
	Final            bool
}

// ETAKnown reports whether the snapshot carries a usable ETA. Speed is
// unmeasurable on the first observations, so early snapshots have none.
func (s Snapshot) ETAKnown() bool { return s.ETASeconds >= 0 }

// progressParser folds ffmpeg's -progress key-value lines into
// snapshots. Keys accumulate until a progress= line terminates the
// block; each block yields one snapshot.
type progressParser struct {
	stage    string
	pass     int
	duration float64
	started  time.Time
	now      func() time.Time

	processed  float64
	haveMicros bool
	frame      int64
	fps        float64
	bitrate    float64
	speed      float64
	haveSpeed  bool
}

func newProgressParser(stage string, pass int, durationSeconds float64) *progressParser {
	p := &progressParser{
		stage:    stage,
		pass:     pass,
		duration: durationSeconds,
		now:      time.Now,
	}
	p.started = p.now()
	return p
}

// feed consumes one stream line. ok is true when the line completed a
// progress block and a snapshot is ready.
func (p *progressParser) feed(line string) (Snapshot, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Snapshot{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if us, err := strconv.ParseFloat(value, 64); err == nil && us >= 0 {
			p.processed = us / 1e6
			p.haveMicros = true
		}
	case "out_time":
		if !p.haveMicros {
			if seconds, ok := parseClock(value); ok {
				p.processed = seconds
			}
		}
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.frame = n
		}
	case "fps":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.fps = f
		}
	case "bitrate":
		if kbps, ok := parseBitrate(value); ok {
			p.bitrate = kbps
		}
	case "speed":
		if mult, ok := parseSpeed(value); ok {
			p.speed = mult
			p.haveSpeed = true
		}
	case "progress":
		return p.snapshot(value == "end"), true
	}
	return Snapshot{}, false
}

func (p *progressParser) snapshot(final bool) Snapshot {
	s := Snapshot{
		Stage:            p.stage,
		Pass:             p.pass,
		ProcessedSeconds: p.processed,
		Frame:            p.frame,
		FPS:              p.fps,
		BitrateKbps:      p.bitrate,
		ETASeconds:       -1,
		Final:            final,
	}

	if p.duration > 0 {
		s.Percent = 100 * p.processed / p.duration
		if s.Percent > 100 {
			s.Percent = 100
		}
	}
	if final && p.duration > 0 {
		s.Percent = 100
	}

	speed := p.speed
	if !p.haveSpeed {
		// The encoder omits speed on early blocks; derive it from wall
		// clock once any time has passed.
		if elapsed := p.now().Sub(p.started).Seconds(); elapsed > 0 && p.processed > 0 {
			speed = p.processed / elapsed
		}
	}
	s.Speed = speed

	if !final && speed > 0.01 && p.duration > p.processed {
		s.ETASeconds = (p.duration - p.processed) / speed
	}
	if final {
		s.ETASeconds = 0
	}
	return s
}

// parseClock parses ffmpeg's HH:MM:SS.micros timestamps.
func parseClock(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	total := hours*3600 + minutes*60 + seconds
	if total < 0 {
		return 0, false
	}
	return total, true
}

// parseBitrate parses values like "934.2kbits/s". The stream reports
// "N/A" until the first frames land.
func parseBitrate(value string) (float64, bool) {
	value = strings.TrimSuffix(value, "kbits/s")
	kbps, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || kbps < 0 {
		return 0, false
	}
	return kbps, true
}

// parseSpeed parses values like "1.25x".
func parseSpeed(value string) (float64, bool) {
	value = strings.TrimSuffix(value, "x")
	mult, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || mult < 0 {
		return 0, false
	}
	return mult, true
}
