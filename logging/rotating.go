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
	"time"
)

const (
	logFilePrefix      = "meditempo-"
	defaultMaxFileSize = 100 * 1024 * 1024
	cleanupInterval    = 24 * time.Hour
)

var numberedLogRe = regexp.MustCompile(`^meditempo-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger is an io.Writer that starts a new file every ISO week and
// whenever the current file reaches maxFileSize. Files older than the
// retention period are removed once a day.
type RotatingLogger struct {
	mu          sync.Mutex
	logDir      string
	file        *os.File
	week        string
	size        int64
	retention   time.Duration
	maxFileSize int64
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotatingLoggerWithSizeLimit creates the log directory, opens the file
// of the current week and starts the retention cleanup loop.
func NewRotatingLoggerWithSizeLimit(logDir string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if retentionWeeks <= 0 {
		retentionWeeks = 4
	}
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	rl.mu.Lock()
	err := rl.rotate(weekKey(rl.now()), false)
	rl.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	go rl.cleanupLoop(ctx)
	return rl, nil
}

// weekKey returns the ISO week in YYYY-Www form
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Write appends p to the current file, rotating first when needed
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(rl.now())
	switch {
	case week != rl.week:
		if err := rl.rotate(week, false); err != nil {
			return 0, err
		}
	case rl.size+int64(len(p)) > rl.maxFileSize:
		if err := rl.rotate(week, true); err != nil {
			return 0, err
		}
	}

	if rl.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// rotate opens the file to write to for week. Caller holds the lock.
func (rl *RotatingLogger) rotate(week string, full bool) error {
	if rl.file != nil {
		if err := rl.file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
		rl.file = nil
	}

	name := rl.pickFile(week, full)
	path := filepath.Join(rl.logDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	rl.file = file
	rl.week = week
	rl.size = size
	return nil
}

// pickFile returns the base week file while it has room, otherwise the
// highest numbered overflow file with room, otherwise the next number.
func (rl *RotatingLogger) pickFile(week string, full bool) string {
	base := logFilePrefix + week + ".log"
	if !full {
		if info, err := os.Stat(filepath.Join(rl.logDir, base)); err != nil || info.Size() < rl.maxFileSize {
			return base
		}
	}

	matches, _ := filepath.Glob(filepath.Join(rl.logDir, logFilePrefix+week+"_??.log"))
	highest := 0
	var highestSize int64
	for _, m := range matches {
		sub := numberedLogRe.FindStringSubmatch(filepath.Base(m))
		if len(sub) < 2 {
			continue
		}
		n, _ := strconv.Atoi(sub[1])
		if n > highest {
			highest = n
			highestSize = 0
			if info, err := os.Stat(m); err == nil {
				highestSize = info.Size()
			}
		}
	}

	// The current numbered file is the one that just filled up
	if highest > 0 && !full && highestSize < rl.maxFileSize {
		return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, highest)
	}
	return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, highest+1)
}

func (rl *RotatingLogger) cleanupLoop(ctx context.Context) {
	defer close(rl.done)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rl.cleanupOldLogs(); err != nil {
				slog.Warn("Failed to cleanup old logs", "error", err)
			}
		}
	}
}

// cleanupOldLogs removes log files last modified before the retention cutoff
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rl.now().Add(-rl.retention)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		// Console only, the file handler may be the one being cleaned
		fmt.Printf("Cleaned up %d old log files\n", deleted)
	}
	return nil
}

// Close stops the cleanup loop and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.cancel()
	<-rl.done

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// multiHandler fans records out to several handlers
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
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
