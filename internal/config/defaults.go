package config

const (
	defaultStateDir           = "~/.local/share/gamedock/state"
	defaultDownloadDir        = "~/.local/share/gamedock/downloads"
	defaultLibraryDir         = "~/games"
	defaultCoverDir           = "~/.local/share/gamedock/covers"
	defaultLogDir             = "~/.local/share/gamedock/logs"
	defaultWineBinary         = "wine"
	defaultStopTimeoutSeconds = 10
	defaultExtractionTimeout  = 0
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
			LibraryDir:  defaultLibraryDir,
			CoverDir:    defaultCoverDir,
			LogDir:      defaultLogDir,
		},
		Extraction: Extraction{
			KeepArchives:   true,
			TimeoutSeconds: defaultExtractionTimeout,
		},
		Launcher: Launcher{
			WineBinary:         defaultWineBinary,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Downloads:      true,
			Extraction:     true,
			Sessions:       false,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
