package hwaccel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"fftoolbox/internal/config"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/services"
)

// Backend identifies a hardware acceleration family.
type Backend string

const (
	BackendNVENC        Backend = "nvenc"
	BackendVAAPI        Backend = "vaapi"
	BackendQuickSync    Backend = "qsv"
	BackendAMF          Backend = "amf"
	BackendVideoToolbox Backend = "videotoolbox"
	BackendNone         Backend = "none"
)

// probeOrder fixes the discovery sequence so repeated runs on the same
// host report capabilities in the same order.
var probeOrder = []Backend{
	BackendNVENC,
	BackendVAAPI,
	BackendQuickSync,
	BackendAMF,
	BackendVideoToolbox,
}

// candidateEncoders maps each backend to the ffmpeg encoder names it
// may provide, in preference order.
var candidateEncoders = map[Backend][]string{
	BackendNVENC:        {"h264_nvenc", "hevc_nvenc"},
	BackendVAAPI:        {"h264_vaapi", "hevc_vaapi"},
	BackendQuickSync:    {"h264_qsv", "hevc_qsv"},
	BackendAMF:          {"h264_amf", "hevc_amf"},
	BackendVideoToolbox: {"h264_videotoolbox", "hevc_videotoolbox"},
}

// Capability reports the encoders a single backend verified.
type Capability struct {
	Backend  Backend
	Encoders []string
}

// Supports reports whether the capability includes the named encoder.
func (c Capability) Supports(encoder string) bool {
	for _, name := range c.Encoders {
		if name == encoder {
			return true
		}
	}
	return false
}

// Negotiator probes the host once and caches the result for the life of
// the process. Probe failures are recorded per backend and never abort
// discovery; a host with no working hardware still yields an empty,
// usable capability set.
type Negotiator struct {
	binary       string
	listTimeout  time.Duration
	trialTimeout time.Duration
	logger       *slog.Logger

	// Hooks for tests; production values are installed by NewNegotiator.
	listEncoders func(ctx context.Context) ([]byte, error)
	trialEncode  func(ctx context.Context, encoder string) error
	signal       func(backend Backend) error

	once     sync.Once
	caps     []Capability
	failures map[Backend]error
}

// NewNegotiator builds a negotiator bound to the configured ffmpeg
// binary and probe timeouts.
func NewNegotiator(cfg *config.Config, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = logging.NewNop()
	}
	n := &Negotiator{
		binary:       cfg.Encode.FFmpegBinary,
		listTimeout:  time.Duration(cfg.Hardware.ListTimeoutSeconds) * time.Second,
		trialTimeout: time.Duration(cfg.Hardware.ProbeTimeoutSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "hwaccel"),
	}
	n.listEncoders = n.runEncoderList
	n.trialEncode = n.runTrialEncode
	n.signal = backendSignal
	return n
}

// Discover probes the host on first call and returns the cached
// capability set afterwards. The returned slice follows probeOrder and
// is never nil.
func (n *Negotiator) Discover(ctx context.Context) []Capability {
	n.once.Do(func() {
		n.caps, n.failures = n.probe(ctx)
	})
	return n.caps
}

// Failures returns the per-backend probe errors from discovery, keyed
// by backend. Discover must run first; before that the map is empty.
func (n *Negotiator) Failures() map[Backend]error {
	if n.failures == nil {
		return map[Backend]error{}
	}
	return n.failures
}

// EncoderFor returns the first discovered hardware encoder matching the
// requested codec family ("h264" or "hevc") and the backend providing
// it. It returns BackendNone and an empty string when nothing matched.
func (n *Negotiator) EncoderFor(ctx context.Context, family string) (string, Backend) {
	for _, capability := range n.Discover(ctx) {
		for _, encoder := range capability.Encoders {
			if EncoderFamily(encoder) == family {
				return encoder, capability.Backend
			}
		}
	}
	return "", BackendNone
}

func (n *Negotiator) probe(ctx context.Context) ([]Capability, map[Backend]error) {
	caps := make([]Capability, 0, len(probeOrder))
	failures := make(map[Backend]error)

	listed, err := n.listEncoders(ctx)
	if err != nil {
		n.logger.Warn("encoder listing failed; assuming software only", logging.Error(err))
		for _, backend := range probeOrder {
			failures[backend] = services.Wrap(services.ErrCapability, "hwaccel", "list encoders", "ffmpeg -encoders failed", err)
		}
		return caps, failures
	}
	available := ParseEncoderList(listed)

	for _, backend := range probeOrder {
		capability, err := n.probeBackend(ctx, backend, available)
		if err != nil {
			failures[backend] = err
			n.logger.Debug("backend unavailable",
				logging.String(logging.FieldBackend, string(backend)),
				logging.Error(err))
			continue
		}
		n.logger.Info("hardware backend verified",
			logging.String(logging.FieldBackend, string(backend)),
			logging.String("encoders", strings.Join(capability.Encoders, ",")))
		caps = append(caps, capability)
	}
	return caps, failures
}

func (n *Negotiator) probeBackend(ctx context.Context, backend Backend, available map[string]bool) (Capability, error) {
	if err := n.signal(backend); err != nil {
		return Capability{}, services.Wrap(services.ErrCapability, "hwaccel", "signal check", fmt.Sprintf("%s signal missing", backend), err)
	}

	verified := make([]string, 0, 2)
	var lastErr error
	for _, encoder := range candidateEncoders[backend] {
		if !available[encoder] {
			lastErr = fmt.Errorf("encoder %s not built into ffmpeg", encoder)
			continue
		}
		if err := n.trialEncode(ctx, encoder); err != nil {
			lastErr = fmt.Errorf("trial encode with %s failed: %w", encoder, err)
			continue
		}
		verified = append(verified, encoder)
	}
	if len(verified) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no candidate encoders for %s", backend)
		}
		return Capability{}, services.Wrap(services.ErrCapability, "hwaccel", "verify encoders", fmt.Sprintf("%s has no working encoder", backend), lastErr)
	}
	return Capability{Backend: backend, Encoders: verified}, nil
}

func (n *Negotiator) runEncoderList(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.listTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, n.binary, "-hide_banner", "-encoders")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// runTrialEncode feeds one second of synthetic video through the
// encoder and discards the output. A clean exit proves the driver stack
// behind the encoder actually works, not just that ffmpeg lists it.
func (n *Negotiator) runTrialEncode(ctx context.Context, encoder string) error {
	ctx, cancel := context.WithTimeout(ctx, n.trialTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, n.binary,
		"-hide_banner", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=320x180:rate=30",
		"-c:v", encoder,
		"-t", "1",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}

// ParseEncoderList extracts encoder names from `ffmpeg -encoders`
// output. Only video encoders are kept; the table header and audio or
// subtitle rows are skipped.
func ParseEncoderList(output []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	inTable := false
	for scanner.Scan() {
		line := scanner.Text()
		if !inTable {
			// The header ends with a " ------" separator line.
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if !strings.Contains(fields[0], "V") {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// EncoderFamily reduces an ffmpeg encoder name to its codec family.
func EncoderFamily(encoder string) string {
	switch {
	case strings.HasPrefix(encoder, "h264") || encoder == "libx264":
		return "h264"
	case strings.HasPrefix(encoder, "hevc") || encoder == "libx265":
		return "hevc"
	default:
		return ""
	}
}

// SoftwareFallback maps a hardware encoder to the software encoder that
// preserves its codec family.
func SoftwareFallback(encoder string) string {
	if EncoderFamily(encoder) == "hevc" {
		return "libx265"
	}
	return "libx264"
}

// IsHardwareEncoder reports whether the encoder name belongs to one of
// the known hardware backends.
func IsHardwareEncoder(encoder string) bool {
	for _, names := range candidateEncoders {
		for _, name := range names {
			if name == encoder {
				return true
			}
		}
	}
	return false
}

// BackendFor returns the backend providing the named encoder, or
// BackendNone for software encoders.
func BackendFor(encoder string) Backend {
	for backend, names := range candidateEncoders {
		for _, name := range names {
			if name == encoder {
				return backend
			}
		}
	}
	return BackendNone
}

// backendSignal checks the cheap platform precondition for a backend
// before any ffmpeg process is spawned.
func backendSignal(backend Backend) error {
	switch backend {
	case BackendNVENC:
		if _, err := exec.LookPath("nvidia-smi"); err != nil {
			return fmt.Errorf("nvidia-smi not found: %w", err)
		}
		return nil
	case BackendVAAPI, BackendQuickSync, BackendAMF:
		if runtime.GOOS != "linux" {
			return fmt.Errorf("%s requires linux", backend)
		}
		nodes, err := RenderNodes()
		if err != nil {
			return fmt.Errorf("render node scan failed: %w", err)
		}
		if len(nodes) == 0 {
			return fmt.Errorf("no DRM render nodes present")
		}
		return nil
	case BackendVideoToolbox:
		if runtime.GOOS != "darwin" {
			return fmt.Errorf("videotoolbox requires darwin")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
}

// SortedEncoders flattens a capability set into a sorted list of
// encoder names, for display.
func SortedEncoders(caps []Capability) []string {
	var names []string
	for _, capability := range caps {
		names = append(names, capability.Encoders...)
	}
	sort.Strings(names)
	return names
}
