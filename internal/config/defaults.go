package config

const (
	defaultLogDir              = "~/.local/share/fftoolbox/logs"
	defaultStateDir            = "~/.local/share/fftoolbox"
	defaultPresetDir           = "~/.config/fftoolbox/presets"
	defaultSafetyFactor        = 0.96
	defaultRetryFactor         = 0.90
	defaultHardwareListTimeout = 5
	defaultHardwareTrial       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultHistoryKeepRuns     = 200
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
			PresetDir: defaultPresetDir,
		},
		Encode: Encode{
			SafetyFactor: defaultSafetyFactor,
			RetryFactor:  defaultRetryFactor,
			VerifySize:   true,
		},
		Hardware: Hardware{
			Enabled:             true,
			ListTimeoutSeconds:  defaultHardwareListTimeout,
			ProbeTimeoutSeconds: defaultHardwareTrial,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled:  true,
			KeepRuns: defaultHistoryKeepRuns,
		},
	}
}
