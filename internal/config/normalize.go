package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeExtraction(); err != nil {
		return err
	}
	c.normalizeLauncher()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CoverDir) == "" {
		c.Paths.CoverDir = defaultCoverDir
	}
	if c.Paths.CoverDir, err = expandPath(c.Paths.CoverDir); err != nil {
		return fmt.Errorf("paths.cover_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() error {
	var err error
	c.Extraction.SevenZipPath = strings.TrimSpace(c.Extraction.SevenZipPath)
	if c.Extraction.SevenZipPath != "" {
		if c.Extraction.SevenZipPath, err = expandPath(c.Extraction.SevenZipPath); err != nil {
			return fmt.Errorf("extraction.seven_zip_path: %w", err)
		}
	}
	c.Extraction.UnrarPath = strings.TrimSpace(c.Extraction.UnrarPath)
	if c.Extraction.UnrarPath != "" {
		if c.Extraction.UnrarPath, err = expandPath(c.Extraction.UnrarPath); err != nil {
			return fmt.Errorf("extraction.unrar_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLauncher() {
	c.Launcher.WineBinary = strings.TrimSpace(c.Launcher.WineBinary)
	if c.Launcher.WineBinary == "" {
		c.Launcher.WineBinary = defaultWineBinary
	}
	if c.Launcher.StopTimeoutSeconds <= 0 {
		c.Launcher.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
