package archives

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"gamedock/internal/config"
	"gamedock/internal/logging"
)

// commandContext is an indirection point for tests.
var commandContext = exec.CommandContext

// ErrNoTool indicates no installed tool can unpack the requested format.
var ErrNoTool = errors.New("no extraction tool available")

// Extractor unpacks archives using the tools resolved at construction time.
type Extractor struct {
	avail   Availability
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor resolves tool availability and returns a ready extractor.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	var timeout time.Duration
	if cfg != nil && cfg.Extraction.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second
	}
	return &Extractor{
		avail:   Detect(cfg),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "extractor"),
	}
}

// Availability exposes the resolved tool set.
func (e *Extractor) Availability() Availability {
	return e.avail
}

// Extract unpacks archivePath into destPath, creating the destination
// directory first. The format is sniffed from the file content with the
// filename as fallback.
func (e *Extractor) Extract(ctx context.Context, archivePath, destPath string) error {
	if strings.TrimSpace(archivePath) == "" {
		return errors.New("archive path required")
	}
	if strings.TrimSpace(destPath) == "" {
		return errors.New("destination path required")
	}

	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return fmt.Errorf("unrecognized archive format for %q", archivePath)
	}

	name, args, err := e.command(format, archivePath, destPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return fmt.Errorf("create destination %q: %w", destPath, err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("extracting archive",
		logging.String("archive", archivePath),
		logging.String("dest", destPath),
		logging.String("format", string(format)),
		logging.String("tool", name),
	)

	cmd := commandContext(runCtx, name, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract %s: %w: %s", archivePath, err, tail(output.String(), 400))
	}
	return nil
}

// command picks the tool invocation for a format. RAR falls back to 7z when
// no dedicated unrar binary is present.
func (e *Extractor) command(format Format, archivePath, destPath string) (string, []string, error) {
	switch format {
	case FormatZip:
		if e.avail.UnzipPath != "" {
			return e.avail.UnzipPath, []string{"-o", archivePath, "-d", destPath}, nil
		}
		if e.avail.SevenZipPath != "" {
			return e.avail.SevenZipPath, []string{"x", "-y", "-o" + destPath, archivePath}, nil
		}
		if e.avail.TarPath != "" {
			// bsdtar reads zip archives; this is the built-in path on Windows.
			return e.avail.TarPath, []string{"-xf", archivePath, "-C", destPath}, nil
		}
	case FormatSevenZip:
		if e.avail.SevenZipPath != "" {
			return e.avail.SevenZipPath, []string{"x", "-y", "-o" + destPath, archivePath}, nil
		}
	case FormatRar:
		if e.avail.UnrarPath != "" {
			return e.avail.UnrarPath, []string{"x", "-o+", archivePath, destPath + string(os.PathSeparator)}, nil
		}
		if e.avail.SevenZipPath != "" {
			return e.avail.SevenZipPath, []string{"x", "-y", "-o" + destPath, archivePath}, nil
		}
	case FormatTar:
		if e.avail.TarPath != "" {
			return e.avail.TarPath, []string{"-xf", archivePath, "-C", destPath}, nil
		}
	}
	return "", nil, fmt.Errorf("%w for format %q", ErrNoTool, format)
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max:]
}
