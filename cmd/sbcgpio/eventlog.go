package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EventLogger appends timestamped run events to a file and mirrors them to
// the structured log.  It is safe for concurrent use.
type EventLogger struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewEventLogger writes to path on fs.  An empty path only logs.
func NewEventLogger(fs afero.Fs, path string, logger *zap.Logger) *EventLogger {
	return &EventLogger{fs: fs, path: path, logger: logger, now: time.Now}
}

// Log records one event.  File errors are logged, not returned.
func (el *EventLogger) Log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	el.logger.Info(msg)
	if el.path == "" {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	line := fmt.Sprintf("%s - %s\n", el.now().Format(time.RFC3339), msg)
	f, err := el.fs.OpenFile(el.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		el.logger.Warn("event log open failed", zap.String("path", el.path), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		el.logger.Warn("event log write failed", zap.String("path", el.path), zap.Error(err))
	}
}
