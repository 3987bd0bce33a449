package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	consoleTimeFormat = "15:04:05.000"
	defaultLogFile    = "./mediatrack.log"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig

	// Output replaces stderr as the console sink.
	Output io.Writer
}

type FileConfig struct {
	Enabled bool
	Path    string
}

var globalsOnce sync.Once

func setGlobals() {
	globalsOnce.Do(func() {
		zerolog.ErrorFieldName = "err"
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
}

// Service owns the active sinks. Stdout belongs to the toast presenter, so
// the console sink defaults to stderr.
type Service struct {
	mu   sync.Mutex
	file *os.File
	path string

	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the service with its root logger. A file sink
// that cannot be opened is reported on the console sink.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	if err := s.Apply(cfg); err != nil {
		l := s.Logger()
		l.Warn("log file unavailable", Err(err))
	}
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &nop
}

// Apply swaps the sinks and level. The new sinks are live before the old
// file is closed. If the file cannot be opened the console sink is used
// alone and the error is returned.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	var (
		writers []io.Writer
		openErr error
		file    = s.file
		path    = s.path
	)
	if cfg.Console {
		writers = append(writers, consoleWriter(console))
	}
	if cfg.File.Enabled {
		want := strings.TrimSpace(cfg.File.Path)
		if want == "" {
			want = defaultLogFile
		}
		if file == nil || path != want {
			f, err := openLogFile(want)
			if err != nil {
				openErr = err
				file, path = nil, ""
			} else {
				file, path = f, want
			}
		}
		if file != nil {
			writers = append(writers, zerolog.SyncWriter(file))
		}
	} else {
		file, path = nil, ""
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(console))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if s.file != nil && s.file != file {
		_ = s.file.Close()
	}
	s.file, s.path = file, path
	return openErr
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file, s.path = nil, ""
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logx: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logx: %w", err)
	}
	return f, nil
}

// consoleWriter colors output only when w is a terminal.
func consoleWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	return zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      !ok || !term.IsTerminal(int(f.Fd())),
		TimeFormat:   consoleTimeFormat,
		FormatCaller: formatCaller,
	}
}

// formatCaller prints the short file:line written by Logger as is.
func formatCaller(i any) string {
	s, _ := i.(string)
	return s
}
