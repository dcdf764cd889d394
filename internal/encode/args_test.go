package encode

import (
	"os"
	"strings"
	"testing"

	"fftoolbox/internal/plan"
)

func TestBuildArgsCRFSinglePass(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/talk.mov",
		VideoCodec:  "libx264",
		RateControl: plan.RateControlCRF,
		CRF:         23,
		Speed:       "slow",
		AudioCodec:  "aac",
		AudioKbps:   192,
		Filters:     []string{"yadif=mode=1", "scale=1920:1080:flags=lanczos"},
		Passes:      1,
	}

	got := strings.Join(BuildArgs(p, "/out/talk_web_1080p.mp4", 0, ""), " ")
	want := "-hide_banner -y -nostdin -i /videos/talk.mov" +
		" -vf yadif=mode=1,scale=1920:1080:flags=lanczos" +
		" -map 0:v -map 0:a?" +
		" -c:v libx264 -profile:v high -pix_fmt yuv420p" +
		" -crf 23 -preset slow" +
		" -c:a aac -b:a 192k" +
		" -movflags +faststart" +
		" -progress pipe:1 -nostats" +
		" /out/talk_web_1080p.mp4"
	if got != want {
		t.Fatalf("BuildArgs mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsTargetBitratePassOne(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/talk.mov",
		VideoCodec:  "libx264",
		RateControl: plan.RateControlTarget,
		VideoKbps:   1200,
		Speed:       "medium",
		AudioCodec:  "aac",
		AudioKbps:   96,
		Passes:      2,
	}

	got := strings.Join(BuildArgs(p, "/out/talk_whatsapp.mp4", 1, "/tmp/work/ff2pass"), " ")
	want := "-hide_banner -y -nostdin -i /videos/talk.mov" +
		" -map 0:v -map 0:a?" +
		" -c:v libx264 -profile:v high -pix_fmt yuv420p" +
		" -b:v 1200k -maxrate 1560k -bufsize 2400k" +
		" -preset medium" +
		" -pass 1 -passlogfile /tmp/work/ff2pass -an -f mp4" +
		" -progress pipe:1 -nostats " + os.DevNull
	if got != want {
		t.Fatalf("pass 1 args mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsTargetBitratePassTwo(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/talk.mov",
		VideoCodec:  "libx264",
		RateControl: plan.RateControlTarget,
		VideoKbps:   1200,
		Speed:       "medium",
		AudioCodec:  "aac",
		AudioKbps:   96,
		Passes:      2,
	}

	got := strings.Join(BuildArgs(p, "/out/talk_whatsapp.mp4", 2, "/tmp/work/ff2pass"), " ")
	want := "-hide_banner -y -nostdin -i /videos/talk.mov" +
		" -map 0:v -map 0:a?" +
		" -c:v libx264 -profile:v high -pix_fmt yuv420p" +
		" -b:v 1200k -maxrate 1560k -bufsize 2400k" +
		" -preset medium" +
		" -pass 2 -passlogfile /tmp/work/ff2pass" +
		" -c:a aac -b:a 96k" +
		" -movflags +faststart" +
		" -progress pipe:1 -nostats" +
		" /out/talk_whatsapp.mp4"
	if got != want {
		t.Fatalf("pass 2 args mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsRemuxIgnoresFilters(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/talk.mkv",
		VideoCodec:  "libx264",
		RateControl: plan.RateControlCopy,
		AudioCodec:  "copy",
		AllAudio:    true,
		Filters:     []string{"yadif=mode=1"},
		Passes:      1,
	}

	got := strings.Join(BuildArgs(p, "/out/talk_fix_audio.mp4", 0, ""), " ")
	want := "-hide_banner -y -nostdin -i /videos/talk.mkv" +
		" -map 0:v -map 0:a" +
		" -c:v copy" +
		" -c:a copy" +
		" -movflags +faststart" +
		" -progress pipe:1 -nostats" +
		" /out/talk_fix_audio.mp4"
	if got != want {
		t.Fatalf("remux args mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsHEVCAndLosslessAudio(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/master.mov",
		VideoCodec:  "libx265",
		RateControl: plan.RateControlCRF,
		CRF:         18,
		Speed:       "slow",
		AudioCodec:  "flac",
		Filters:     []string{"scale=trunc(iw/2)*2:trunc(ih/2)*2"},
		Passes:      1,
	}

	got := strings.Join(BuildArgs(p, "/out/master_archive_h265.mp4", 0, ""), " ")
	want := "-hide_banner -y -nostdin -i /videos/master.mov" +
		" -vf scale=trunc(iw/2)*2:trunc(ih/2)*2" +
		" -map 0:v -map 0:a?" +
		" -c:v libx265 -pix_fmt yuv420p -tag:v hvc1" +
		" -crf 18 -preset slow" +
		" -c:a flac" +
		" -movflags +faststart" +
		" -progress pipe:1 -nostats" +
		" /out/master_archive_h265.mp4"
	if got != want {
		t.Fatalf("hevc args mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsHardwareEncoderSkipsPreset(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/clip.mp4",
		VideoCodec:  "h264_nvenc",
		RateControl: plan.RateControlCRF,
		CRF:         23,
		AudioCodec:  "aac",
		AudioKbps:   128,
		Passes:      1,
	}

	args := BuildArgs(p, "/out/clip_quick.mp4", 0, "")
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-preset") {
		t.Fatalf("hardware encoder args should not carry -preset: %s", joined)
	}
	if !strings.Contains(joined, "-c:v h264_nvenc -pix_fmt yuv420p") {
		t.Fatalf("expected generic codec args for h264_nvenc, got %s", joined)
	}
}

func TestTrialArgs(t *testing.T) {
	p := plan.EncodePlan{
		Input:      "/videos/clip.mp4",
		VideoCodec: "hevc_nvenc",
		Filters:    []string{"scale=1280:720:flags=lanczos"},
	}

	got := strings.Join(trialArgs(p), " ")
	want := "-hide_banner -v error -nostdin -i /videos/clip.mp4" +
		" -vf scale=1280:720:flags=lanczos" +
		" -map 0:v:0 -c:v hevc_nvenc -an -t 1 -f null -"
	if got != want {
		t.Fatalf("trial args mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildArgsIsDeterministic(t *testing.T) {
	p := plan.EncodePlan{
		Input:       "/videos/a.mp4",
		VideoCodec:  "libx264",
		RateControl: plan.RateControlTarget,
		VideoKbps:   2500,
		Speed:       "medium",
		AudioCodec:  "aac",
		AudioKbps:   128,
		Filters:     []string{"hqdn3d=4:3:6:4.5", "scale=1280:720:flags=lanczos"},
		Passes:      2,
	}

	first := strings.Join(BuildArgs(p, "/out/a.mp4", 2, "/tmp/p"), " ")
	for i := 0; i < 5; i++ {
		if again := strings.Join(BuildArgs(p, "/out/a.mp4", 2, "/tmp/p"), " "); again != first {
			t.Fatalf("args changed between builds:\n%s\n%s", first, again)
		}
	}
}
