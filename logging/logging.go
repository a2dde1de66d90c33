package logging

import (
	"io"
	stdlog "log"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxLogSize = 2 * 1024 * 1024 // 2MB

type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Options controls the global logger. An empty Path logs to stdout only.
type Options struct {
	Path    string
	Level   string
	Env     string
	Service string
}

// Setup installs the global zerolog logger and routes the standard library
// logger through it. The returned writer is nil when no file is configured.
func Setup(opts Options) (*RotatingWriter, error) {
	var rw *RotatingWriter
	var out io.Writer = os.Stdout
	if opts.Path != "" {
		var err error
		rw, err = OpenRotating(opts.Path, maxLogSize)
		if err != nil {
			return nil, err
		}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		if rw != nil {
			out = io.MultiWriter(out, rw)
		}
		log.Logger = zerolog.New(out).With().Timestamp().Str("service", opts.Service).Logger()
	} else {
		if rw != nil {
			out = io.MultiWriter(os.Stdout, rw)
		}
		log.Logger = zerolog.New(out).With().Timestamp().Caller().Str("service", opts.Service).Logger()
	}

	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)

	return rw, nil
}

// OpenRotating opens path for appending. A file already over maxSize is
// truncated first.
func OpenRotating(path string, maxSize int64) (*RotatingWriter, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
		os.Truncate(path, 0)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	info, _ := f.Stat()
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    path,
		size:    size,
		maxSize: maxSize,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()

	// Keep one backup
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
