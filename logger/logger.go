package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"relayer/config"
)

const MaxLogSize = 50 * 1024 * 1024 // 50 MB

// Log channels, one rotated file each
const (
	ChannelGlobal   = "global"
	ChannelRelay    = "relay"
	ChannelDispatch = "dispatch"
	ChannelAnomaly  = "anomaly"
)

var (
	GlobalLogger, RelayLogger, DispatchLogger *slog.Logger

	// AnomalyLogger is for events that imply a bug or an attack, such as a
	// transaction changing between decode and signing. Records go to the
	// relay file and to a dedicated anomaly file.
	AnomalyLogger *slog.Logger

	level          = new(slog.LevelVar)
	consoleEnabled = true

	mu      sync.Mutex
	writers = map[string]*rotatingWriter{}
)

// Console only until InitLogs opens the files.
func init() {
	resetLoggers()
}

// Thread-safe writer that rotates files when they exceed max size. The full
// file is renamed with a timestamp suffix, never truncated.
type rotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	dir     string
	prefix  string // e.g. "relayer_20250925101122_serve_relay"
	ext     string // ".log"
	size    int64
	maxSize int64
	timefmt string
}

func newRotatingWriter(dir, prefix string, maxSize int64) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rw := &rotatingWriter{
		dir:     dir,
		prefix:  prefix,
		ext:     ".log",
		maxSize: maxSize,
		timefmt: "20060102150405.000000000",
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (w *rotatingWriter) currentName() string {
	return filepath.Join(w.dir, w.prefix+w.ext)
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.currentName(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	rotated := filepath.Join(w.dir, w.prefix+"_"+time.Now().Format(w.timefmt)+w.ext)
	if err := os.Rename(w.currentName(), rotated); err != nil {
		return err
	}
	return w.open()
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// SetLevel sets the minimum level of every logger, e.g. "debug" or "warn".
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.Set(l)
	return nil
}

func SetConsoleEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	consoleEnabled = enabled
	resetLoggers()
}

// InitLogs opens the per-command log files under config.LogPath.
func InitLogs(cmdName string) {
	if err := Init(config.LogPath, cmdName); err != nil {
		log.Fatal(err)
	}
}

// Init opens one rotated file per channel under dir, replacing any files a
// previous Init opened.
func Init(dir, cmdName string) error {
	mu.Lock()
	defer mu.Unlock()

	closeWriters()
	ts := time.Now().Format("20060102150405")
	for _, ch := range []string{ChannelGlobal, ChannelRelay, ChannelDispatch, ChannelAnomaly} {
		rw, err := newRotatingWriter(dir, fmt.Sprintf("relayer_%s_%s_%s", ts, cmdName, ch), MaxLogSize)
		if err != nil {
			closeWriters()
			resetLoggers()
			return err
		}
		writers[ch] = rw
	}
	resetLoggers()
	return nil
}

func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	closeWriters()
	resetLoggers()
}

func closeWriters() {
	for ch, w := range writers {
		_ = w.Close()
		delete(writers, ch)
	}
}

func newHandler(fileWriter io.Writer) slog.Handler {
	var w io.Writer = os.Stdout
	switch {
	case fileWriter != nil && consoleEnabled:
		w = io.MultiWriter(os.Stdout, fileWriter)
	case fileWriter != nil:
		w = fileWriter
	case !consoleEnabled:
		w = io.Discard
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
}

// channelWriter returns nil for a channel without an open file.
func channelWriter(ch string) io.Writer {
	if w, ok := writers[ch]; ok {
		return w
	}
	return nil
}

func resetLoggers() {
	GlobalLogger = slog.New(newHandler(channelWriter(ChannelGlobal)))
	RelayLogger = slog.New(newHandler(channelWriter(ChannelRelay)))
	DispatchLogger = slog.New(newHandler(channelWriter(ChannelDispatch)))

	anomalies := RelayLogger.Handler()
	if w := channelWriter(ChannelAnomaly); w != nil {
		anomalies = teeHandler{anomalies, slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true, Level: level})}
	}
	AnomalyLogger = slog.New(anomalies)
}

// teeHandler hands every record to all of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
