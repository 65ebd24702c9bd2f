package logger

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

	"github.com/fatih/color"
)

const (
	LevelFatal slog.Level = 12
)

const retention = 30 * 24 * time.Hour

// sink owns the output side shared by every handler derived through WithAttrs/WithGroup.
type sink struct {
	ch          chan []byte
	console     io.Writer
	writer      io.Writer
	currentDay  int
	currentFile *os.File
	basePath    string // empty disables file output
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

type AsyncHandler struct {
	sink     *sink
	attrs    []slog.Attr
	group    string
	logLevel slog.Level
}

// NewAsyncHandler writes to console and, when basePath is not empty, to a daily log file in basePath.
func NewAsyncHandler(console io.Writer, basePath string, logLevel slog.Level) *AsyncHandler {
	s := &sink{
		ch:       make(chan []byte, 1024),
		console:  console,
		writer:   console,
		basePath: basePath,
	}
	if err := s.rotateIfNeeded(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	s.wg.Add(1)
	go s.startWorker()
	return &AsyncHandler{sink: s, logLevel: logLevel}
}

func (s *sink) cleanOldLogs() {
	files, _ := filepath.Glob(filepath.Join(s.basePath, "*.log"))
	now := time.Now()

	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > retention {
			_ = os.Remove(f)
		}
	}
}

func (s *sink) rotateIfNeeded() error {
	if s.basePath == "" {
		return nil
	}
	now := time.Now()
	currentDay := now.YearDay()

	if currentDay == s.currentDay && s.currentFile != nil {
		return nil
	}

	if s.currentFile != nil {
		if err := s.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		s.currentFile = nil
		s.writer = s.console
	}

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(s.basePath, now.Format("2006-01-02")+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	s.currentFile = f
	s.currentDay = currentDay
	s.writer = io.MultiWriter(s.console, f)
	s.cleanOldLogs()
	return nil
}

func (s *sink) startWorker() {
	defer s.wg.Done()
	for data := range s.ch {
		_ = s.rotateIfNeeded()
		_, _ = s.writer.Write(data)
	}
}

func (s *sink) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
		s.wg.Wait()
		if s.currentFile != nil {
			_ = s.currentFile.Sync()
			_ = s.currentFile.Close()
		}
	})
}

func (h *AsyncHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	case LevelFatal:
		level = color.HiRedString("FATAL")
	}

	var line strings.Builder
	line.WriteString(fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format("2006-01-02T15:04:05")),
		level,
		color.CyanString(r.Message),
	))

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	for _, attr := range h.attrs {
		line.WriteString(color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value)))
	}
	r.Attrs(func(attr slog.Attr) bool {
		line.WriteString(color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value)))
		return true
	})
	line.WriteString("\n")

	h.Write([]byte(line.String()))
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		newAttrs = append(newAttrs, attr)
	}
	return &AsyncHandler{sink: h.sink, attrs: newAttrs, group: h.group, logLevel: h.logLevel}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &AsyncHandler{sink: h.sink, attrs: h.attrs, group: group, logLevel: h.logLevel}
}

// Write queues p; the data is copied so callers may reuse their buffer.
func (h *AsyncHandler) Write(p []byte) {
	pb := make([]byte, len(p))
	copy(pb, p)
	h.sink.ch <- pb
}

// Close drains the queue and closes the log file. Writing after Close panics.
func (h *AsyncHandler) Close() error {
	h.sink.close()
	return nil
}

type ShutdownCallback struct {
	handler *AsyncHandler
}

func (lc *ShutdownCallback) Invoke(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = lc.handler.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Init installs the coloured async handler as the slog default logger.
func Init(debug bool, logDir string) *ShutdownCallback {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := NewAsyncHandler(os.Stdout, logDir, level)
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logger initialized")
	return &ShutdownCallback{handler: handler}
}

func Debug(msg string, v ...interface{}) {
	slog.Debug(msg, v...)
}

func DebugF(msg string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(msg, v...))
}

func Info(msg string, v ...interface{}) {
	slog.Info(msg, v...)
}

func InfoF(msg string, v ...interface{}) {
	slog.Info(fmt.Sprintf(msg, v...))
}

func Warn(msg string, v ...interface{}) {
	slog.Warn(msg, v...)
}

func WarnF(msg string, v ...interface{}) {
	slog.Warn(fmt.Sprintf(msg, v...))
}

func Error(msg string, v ...interface{}) {
	slog.Error(msg, v...)
}

func ErrorF(msg string, v ...interface{}) {
	slog.Error(fmt.Sprintf(msg, v...))
}

func Fatal(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, msg, v...)
}

func FatalF(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, fmt.Sprintf(msg, v...))
}
