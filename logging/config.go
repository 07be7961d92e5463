package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxFileSize is the size at which the current day's file is split.
const DefaultMaxFileSize = 100 * 1024 * 1024

var numberedFileRegex = regexp.MustCompile(`^app-\d{4}-\d{2}-\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one log file per day (app-YYYY-MM-DD.log), splits a day into
// numbered files (app-YYYY-MM-DD_01.log, ...) once the size limit is reached and
// removes files older than the retention period.
type RotatingLogger struct {
	logDir      string
	currentFile *os.File
	currentDay  string
	retention   time.Duration
	maxFileSize int64
	currentSize atomic.Int64
	mu          sync.Mutex
	now         func() time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
	cleanupOnce sync.Once
	started     atomic.Bool
}

// NewRotatingLogger creates a new rotating logger instance
func NewRotatingLogger(logDir string, retentionDays int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(logDir, retentionDays, DefaultMaxFileSize)
}

// NewRotatingLoggerWithSizeLimit creates a new rotating logger with custom size limit.
// A maxFileSize of 0 disables size splitting.
func NewRotatingLoggerWithSizeLimit(logDir string, retentionDays int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// getDayKey returns the day key in YYYY-MM-DD format
func getDayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// doRotate switches to the file for targetDay (caller must hold the lock)
func (rl *RotatingLogger) doRotate(targetDay string) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
		rl.currentFile = nil
	}

	isSizeRotation := rl.currentDay == targetDay && rl.maxFileSize > 0 && rl.currentSize.Load() >= rl.maxFileSize
	fileName, isNew, err := rl.findOrCreateLogFile(targetDay, isSizeRotation)
	if err != nil {
		return err
	}

	logPath := filepath.Join(rl.logDir, fileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	rl.currentFile = file
	rl.currentDay = targetDay

	if isNew {
		rl.currentSize.Store(0)
	} else if info, err := file.Stat(); err == nil {
		rl.currentSize.Store(info.Size())
	}

	return nil
}

// findOrCreateLogFile picks the file to write for a day. The base file is used while it is
// below the size limit, then the highest numbered file, then a new numbered file.
func (rl *RotatingLogger) findOrCreateLogFile(targetDay string, isSizeRotation bool) (string, bool, error) {
	baseFileName := fmt.Sprintf("app-%s.log", targetDay)

	if !isSizeRotation {
		info, err := os.Stat(filepath.Join(rl.logDir, baseFileName))
		if err != nil {
			return baseFileName, true, nil
		}
		if rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return baseFileName, false, nil
		}
	}

	highestNum, lastFilePath, lastSize := rl.findHighestNumberedFile(targetDay)
	if lastFilePath != "" && lastSize < rl.maxFileSize && !isSizeRotation {
		return filepath.Base(lastFilePath), false, nil
	}

	if highestNum >= 99 {
		return "", false, fmt.Errorf("too many log files for %s", targetDay)
	}
	return fmt.Sprintf("app-%s_%02d.log", targetDay, highestNum+1), true, nil
}

// findHighestNumberedFile returns the highest split number used for a day with its path and size
func (rl *RotatingLogger) findHighestNumberedFile(targetDay string) (int, string, int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, fmt.Sprintf("app-%s_??.log", targetDay)))

	highestNum := 0
	var lastPath string
	var lastSize int64

	for _, match := range matches {
		num, size := parseNumberedFile(match)
		if num > highestNum {
			highestNum = num
			lastPath = match
			lastSize = size
		}
	}

	return highestNum, lastPath, lastSize
}

// parseNumberedFile extracts the split number and file size from a numbered log file
func parseNumberedFile(filePath string) (int, int64) {
	matches := numberedFileRegex.FindStringSubmatch(filepath.Base(filePath))
	if len(matches) < 2 {
		return 0, 0
	}

	num, _ := strconv.Atoi(matches[1])

	info, err := os.Stat(filePath)
	if err != nil {
		return num, 0
	}
	return num, info.Size()
}

// Write writes data to the current log file, rotating first on a day change or when
// the write would exceed the size limit.
func (rl *RotatingLogger) Write(p []byte) (n int, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	today := getDayKey(rl.now())
	needsRotation := rl.currentFile == nil || rl.currentDay != today

	if rl.maxFileSize > 0 && !needsRotation {
		currentSize := rl.currentSize.Load()
		if currentSize > 0 && currentSize+int64(len(p)) > rl.maxFileSize {
			needsRotation = true
			rl.currentSize.Store(rl.maxFileSize)
		}
	}

	if needsRotation {
		if err = rl.doRotate(today); err != nil {
			return 0, err
		}
	}

	n, err = rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files whose last write is older than the retention period
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rl.now().Add(-rl.retention)
	var deletedCount int

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "app-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, entry.Name())); err == nil {
				deletedCount++
			}
		}
	}

	if deletedCount > 0 {
		// Console only, writing through slog here would recurse into Write
		fmt.Printf("Cleaned up %d old log files\n", deletedCount)
	}

	return nil
}

// startCleanup runs cleanupOldLogs once now and then on every tick until Close
func (rl *RotatingLogger) startCleanup(interval time.Duration) {
	if !rl.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(rl.cleanupDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := rl.cleanupOldLogs(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to cleanup old logs: %v\n", err)
			}
			select {
			case <-rl.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Close stops background cleanup and closes the current file
func (rl *RotatingLogger) Close() error {
	var err error
	rl.cleanupOnce.Do(func() {
		rl.cancel()

		if rl.started.Load() {
			select {
			case <-rl.cleanupDone:
			case <-time.After(5 * time.Second):
				fmt.Printf("Warning: background cleanup goroutine did not shutdown gracefully\n")
			}
		}

		rl.mu.Lock()
		defer rl.mu.Unlock()

		if rl.currentFile != nil {
			err = rl.currentFile.Close()
			rl.currentFile = nil
		}
	})
	return err
}

// multiHandler implements slog.Handler to write to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
