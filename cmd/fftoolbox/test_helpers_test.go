package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fftoolbox/internal/config"
)

// fakeFFprobeScript answers -version for tool checks and otherwise
// emits one canned inspection payload: 1080p h264 at 8 Mbps, two
// minutes long, 600 MB, with a single stereo AAC track.
const fakeFFprobeScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffprobe version 6.1.1 Copyright (c) 2007-2023 the FFmpeg developers"
  exit 0
fi
cat <<'JSON'
{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "30/1",
      "bit_rate": "8000000"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "tags": {"language": "eng"}
    }
  ],
  "format": {
    "filename": "input.mp4",
    "nb_streams": 2,
    "duration": "120.000000",
    "size": "600000000",
    "bit_rate": "8000000",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2"
  }
}
JSON
`

// fakeFFmpegScript answers -version, writes a small output when the
// last argument looks like a real destination, and emits a progress
// stream on stdout the way -progress pipe:1 would.
const fakeFFmpegScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers"
  exit 0
fi
out=""
for arg in "$@"; do out="$arg"; done
case "$out" in
  *.mp4) printf 'transcoded payload' > "$out" ;;
esac
printf 'frame=1800\nfps=60.0\nbitrate=2000.0kbits/s\nout_time_us=60000000\nspeed=2.00x\nprogress=continue\n'
printf 'frame=3600\nfps=60.0\nbitrate=2000.0kbits/s\nout_time_us=120000000\nspeed=2.00x\nprogress=end\n'
exit 0
`

// failingFFmpegScript still reports a version so preflight passes, but
// every encode attempt dies the way a broken filter graph would.
const failingFFmpegScript = `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers"
  exit 0
fi
echo "Conversion failed!" >&2
exit 1
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	outputDir  string
	logDir     string
	stateDir   string
	presetDir  string
	binDir     string

	ffmpegBinary   string
	ffprobeBinary  string
	historyEnabled bool
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{
		baseDir:        base,
		configPath:     filepath.Join(base, "config.toml"),
		outputDir:      filepath.Join(base, "output"),
		logDir:         filepath.Join(base, "logs"),
		stateDir:       filepath.Join(base, "state"),
		presetDir:      filepath.Join(base, "presets"),
		binDir:         filepath.Join(base, "bin"),
		historyEnabled: true,
	}
	for _, dir := range []string{env.outputDir, env.logDir, env.stateDir, env.presetDir, env.binDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	env.ffmpegBinary = env.writeStub(t, "ffmpeg", fakeFFmpegScript)
	env.ffprobeBinary = env.writeStub(t, "ffprobe", fakeFFprobeScript)
	env.writeConfig(t)

	return env
}

func (e *cliTestEnv) writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(e.binDir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// writeConfig renders the env into a TOML file and reloads e.cfg from
// it, so tests exercise the same parse path the CLI uses. Call again
// after mutating env fields.
func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
log_dir = %q
state_dir = %q
preset_dir = %q

[encode]
ffmpeg_binary = %q
ffprobe_binary = %q

[hardware]
enabled = false

[history]
enabled = %t
`,
		e.outputDir, e.logDir, e.stateDir, e.presetDir,
		e.ffmpegBinary, e.ffprobeBinary, e.historyEnabled,
	)
	if err := os.WriteFile(e.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(e.configPath)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	e.cfg = cfg
}

// writeMedia drops a small file with a video extension into the env;
// the ffprobe stub supplies its metadata regardless of content.
func (e *cliTestEnv) writeMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, 2048), 0o644); err != nil {
		t.Fatalf("write media %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q to not contain %q", output, substr)
	}
}
