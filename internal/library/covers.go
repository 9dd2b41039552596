package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// cacheCover downloads a remote cover image into the cover directory and
// returns the local path. Callers treat failure as non-fatal.
func (s *Store) cacheCover(ctx context.Context, itemID int64, coverURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return "", fmt.Errorf("build cover request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch cover: %s", resp.Status)
	}

	if err := os.MkdirAll(s.coverDir, 0o755); err != nil {
		return "", fmt.Errorf("create cover directory: %w", err)
	}

	ext := coverExtension(coverURL, resp.Header.Get("Content-Type"))
	localPath := filepath.Join(s.coverDir, fmt.Sprintf("%d%s", itemID, ext))

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create cover file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("write cover file: %w", err)
	}
	return localPath, nil
}

func coverExtension(coverURL, contentType string) string {
	if parsed, err := url.Parse(coverURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
