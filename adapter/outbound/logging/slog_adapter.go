package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ajkula/notifytrigger/config"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// SlogAdapter implements the Logger interface using Go's structured logging
// (slog) with asynchronous processing. Callers only wait on log I/O when the
// buffer is full.
type SlogAdapter struct {
	logger    *slog.Logger
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	slogLevel *slog.LevelVar
	closer    io.Closer
	once      sync.Once
}

var _ outbound.Logger = (*SlogAdapter)(nil)
var _ outbound.LevelController = (*SlogAdapter)(nil)

// NewSlogAdapter builds the logger described by cfg.Logging.
// An unusable log file falls back to stderr.
func NewSlogAdapter(cfg *config.Config) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	// LevelVar allows dynamic level changes
	levelVar := &slog.LevelVar{}
	level, ok := parseSlogLevel(cfg.Logging.Level)
	if !ok {
		level = slog.LevelInfo
	}
	levelVar.Set(level)

	writer, closer := openOutput(cfg.Logging.Output, cfg.Logging.FilePath)

	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "text") {
		handler = slog.NewTextHandler(writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	}

	channelSize := cfg.Logging.ChannelSize
	if channelSize < 1 {
		channelSize = 1
	}

	logger := slog.New(handler)
	if cfg.General.NodeID != "" {
		logger = logger.With("nodeId", cfg.General.NodeID)
	}

	adapter := &SlogAdapter{
		logger:    logger,
		logChan:   make(chan LogMessage, channelSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		slogLevel: levelVar,
		closer:    closer,
	}

	go adapter.processLogs()

	return adapter
}

func openOutput(output, filePath string) (io.Writer, io.Closer) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		if filePath == "" {
			return os.Stderr, nil
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create log directory, logging to stderr: %v\n", err)
			return os.Stderr, nil
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file, logging to stderr: %v\n", err)
			return os.Stderr, nil
		}
		return file, file
	default:
		return os.Stdout, nil
	}
}

// UpdateLevel changes the slog level dynamically. Unknown levels are ignored.
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(strings.TrimSpace(logLvl))

	level, ok := parseSlogLevel(normalizedLevel)
	if !ok {
		s.Warn("Ignoring unknown log level", "level", logLvl)
		return
	}

	s.slogLevel.Set(level)

	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// Level returns the current level name
func (s *SlogAdapter) Level() string {
	return strings.ToLower(s.slogLevel.Level().String())
}

// handles messages asynchronously
func (s *SlogAdapter) processLogs() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for len(s.logChan) > 0 {
				msg := <-s.logChan
				s.writeLog(msg)
			}
			return
		}
	}
}

// converts string level to slog.Level
func parseSlogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// performs the logging operation
func (s *SlogAdapter) writeLog(msg LogMessage) {
	record := slog.NewRecord(msg.Time, toSlogLevel(msg.Level), msg.Msg, 0)
	record.Add(msg.Args...)
	if s.logger.Handler().Enabled(s.ctx, record.Level) {
		_ = s.logger.Handler().Handle(context.Background(), record)
	}
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		return
	}

	// a full channel makes the caller wait for the writer, entries are never dropped
	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	case <-s.ctx.Done():
	}
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	return toSlogLevel(level) >= s.slogLevel.Level()
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes pending entries and blocks until they are written
func (s *SlogAdapter) Shutdown() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if s.closer != nil {
			_ = s.closer.Close()
		}
	})
}
