package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const runLogGlob = "daemon-*.log"

// RunLogPath names the log file of one daemon run inside dir.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, "daemon-"+runID+".log")
}

// PruneRunLogs deletes per-run daemon logs in dir last modified more than
// keepDays ago and reports how many went. The log at current is never
// removed, and neither is anything that is not a regular file (the
// daemon.log pointer among them). keepDays <= 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, keepDays int, current string) int {
	dir = strings.TrimSpace(dir)
	if keepDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, runLogGlob))
	if err != nil || len(matches) == 0 {
		return 0
	}
	keep := absPath(current)
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	removed := 0
	for _, path := range matches {
		if keep != "" && absPath(path) == keep {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old daemon log not removed", "log_prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of the logs directory under data_dir"),
				String(FieldImpact, "the old log stays on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("pruned old daemon logs",
			Int("count", removed),
			Int("retention_days", keepDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
