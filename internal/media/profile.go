package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fftoolbox/internal/config"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/media/ffprobe"
	"fftoolbox/internal/services"
)

// Profile captures the source facts one probe produces. Bitrate and frame
// rate are 0 when the container does not report them.
type Profile struct {
	Path            string
	Container       string
	VideoCodec      string
	AudioCodec      string
	Width           int
	Height          int
	DurationSeconds float64
	BitrateBps      int64
	FrameRate       float64
	SizeBytes       int64
	AudioTracks     int
	AudioLanguages  []string
}

// BitsPerPixel returns the source bit density in kilobits per second
// per pixel, the measure content-aware quality selection keys off. It
// returns 0 when dimensions are unknown; bitrate falls back to the
// size-derived average when the container omits it.
func (p Profile) BitsPerPixel() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	bps := p.EffectiveBitrateBps()
	if bps <= 0 {
		return 0
	}
	return float64(bps) / 1000 / (float64(p.Width) * float64(p.Height))
}

// EffectiveBitrateBps returns the reported average bitrate, deriving it from
// size and duration when the container omits it.
func (p Profile) EffectiveBitrateBps() int64 {
	if p.BitrateBps > 0 {
		return p.BitrateBps
	}
	if p.SizeBytes > 0 && p.DurationSeconds > 0 {
		return int64(float64(p.SizeBytes) * 8 / p.DurationSeconds)
	}
	return 0
}

// Resolution renders the source dimensions as "WxH".
func (p Profile) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Prober inspects source files via ffprobe.
type Prober struct {
	binary string
	logger *slog.Logger
}

// NewProber constructs a Prober using the configured ffprobe binary.
func NewProber(cfg *config.Config, logger *slog.Logger) *Prober {
	binary := "ffprobe"
	if cfg != nil {
		binary = cfg.FFprobeBinary()
	}
	return &Prober{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "probe"),
	}
}

// Probe inspects path and returns its Profile. File-access, tool, and parse
// failures are all reported as probe errors so a batch can skip the file and
// continue.
func (p *Prober) Probe(ctx context.Context, path string) (Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "stat", path, err)
	}
	if info.IsDir() {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "stat", fmt.Sprintf("%s is a directory", path), nil)
	}

	result, err := ffprobe.Inspect(ctx, p.binary, path)
	if err != nil {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "inspect", path, err)
	}

	profile, err := ProfileFromResult(path, result)
	if err != nil {
		return Profile{}, err
	}
	if profile.SizeBytes == 0 {
		profile.SizeBytes = info.Size()
	}

	p.logger.Debug("probed source",
		logging.String(logging.FieldInput, path),
		logging.String("video_codec", profile.VideoCodec),
		logging.String("resolution", profile.Resolution()),
		logging.Float64("duration_seconds", profile.DurationSeconds),
		logging.Int64("bitrate_bps", profile.BitrateBps),
	)
	return profile, nil
}

// ProfileFromResult converts a parsed ffprobe result into a Profile. Exposed
// so probe handling can be tested on canned payloads.
func ProfileFromResult(path string, result ffprobe.Result) (Profile, error) {
	video, ok := result.FirstVideoStream()
	if !ok {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "streams", fmt.Sprintf("%s has no decodable video stream", path), nil)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "streams", fmt.Sprintf("%s reports no video dimensions", path), nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return Profile{}, services.Wrap(services.ErrProbe, "probe", "format", fmt.Sprintf("%s reports no duration", path), nil)
	}

	profile := Profile{
		Path:            path,
		Container:       result.Format.FormatName,
		VideoCodec:      strings.ToLower(video.CodecName),
		Width:           video.Width,
		Height:          video.Height,
		DurationSeconds: duration,
		BitrateBps:      result.BitRate(),
		FrameRate:       video.FrameRate(),
		SizeBytes:       result.SizeBytes(),
		AudioTracks:     result.AudioStreamCount(),
	}
	if audio, ok := result.FirstAudioStream(); ok {
		profile.AudioCodec = strings.ToLower(audio.CodecName)
	}
	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if lang := stream.Language(); lang != "" {
			profile.AudioLanguages = append(profile.AudioLanguages, lang)
		}
	}
	return profile, nil
}

// acceptedExtensions lists every container the pipeline will pick up when
// expanding inputs. Output is always the MP4 family.
var acceptedExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".m4v": {}, ".avi": {}, ".wmv": {},
	".flv": {}, ".webm": {}, ".mxf": {}, ".ts": {}, ".mts": {}, ".m2ts": {},
	".mpg": {}, ".mpeg": {}, ".3gp": {}, ".ogv": {}, ".dv": {}, ".vob": {},
}

// AcceptedExtension reports whether path carries a recognized video container
// extension.
func AcceptedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := acceptedExtensions[ext]
	return ok
}

// professionalCodecs is the intermediate/acquisition codec family that marks
// a source as editing output rather than delivery media.
var professionalCodecs = map[string]struct{}{
	"prores": {}, "prores_ks": {}, "dnxhd": {}, "dnxhr": {}, "mjpeg": {},
	"v210": {}, "r10k": {}, "r210": {}, "cineform": {}, "cfhd": {},
	"huffyuv": {}, "ffv1": {}, "utvideo": {},
}

// IsProfessionalCodec reports whether codec belongs to the professional
// intermediate family (ProRes, DNx, and friends).
func IsProfessionalCodec(codec string) bool {
	_, ok := professionalCodecs[strings.ToLower(strings.TrimSpace(codec))]
	return ok
}
