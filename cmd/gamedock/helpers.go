package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func formatBytes(value int64) string {
	if value <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(value))
}

func formatSpeed(value int64) string {
	if value <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(value)) + "/s"
}

func formatProgress(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

func formatTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return humanize.Time(*value)
}

func formatDuration(value time.Duration) string {
	if value <= 0 {
		return "-"
	}
	return value.Round(time.Second).String()
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
