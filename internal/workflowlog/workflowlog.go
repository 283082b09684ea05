package workflowlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var workerNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const logFlags = log.LstdFlags | log.Lmicroseconds | log.LUTC

// Manager hands out one *log.Logger per worker, each backed by
// logs/<process>/<worker>.log and mirrored to the console writer.
type Manager struct {
	process string
	dir     string

	mu      sync.Mutex
	console io.Writer
	files   map[string]*os.File
	loggers map[string]*log.Logger
}

// New places logs under <module root>/logs/<process>.
func New(process string) (*Manager, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("workflowlog: getwd: %w", err)
	}
	return NewAt(filepath.Join(findModuleRoot(wd), "logs"), process)
}

// NewAt places logs under base/<process>. An empty base falls back to New.
func NewAt(base, process string) (*Manager, error) {
	process = strings.TrimSpace(process)
	if process == "" {
		process = "app"
	}
	if strings.TrimSpace(base) == "" {
		return New(process)
	}
	dir := filepath.Join(base, process)

	// Every restart gets a clean log set for this process.
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("workflowlog: clear dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workflowlog: mkdir: %w", err)
	}

	return &Manager{
		process: process,
		dir:     dir,
		console: os.Stdout,
		files:   make(map[string]*os.File),
		loggers: make(map[string]*log.Logger),
	}, nil
}

func (m *Manager) Dir() string {
	if m == nil {
		return ""
	}
	return m.dir
}

// Quiet stops mirroring to stdout for loggers created afterwards.
// The terminal UI owns the screen, so only the files are written.
func (m *Manager) Quiet() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.console = nil
	m.mu.Unlock()
}

func (m *Manager) Logger(worker string) *log.Logger {
	if m == nil {
		return log.New(os.Stdout, "[workflow] ", logFlags)
	}

	name := sanitizeWorkerName(worker)
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[name]; ok {
		return l
	}

	p := filepath.Join(m.dir, name+".log")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Do not crash main flow on logging setup issues.
		if m.console == nil {
			return log.New(io.Discard, "", 0)
		}
		return log.New(m.console, "["+name+"] ", logFlags)
	}

	m.files[name] = f
	var w io.Writer = f
	if m.console != nil {
		w = io.MultiWriter(m.console, f)
	}
	l := log.New(w, "["+name+"] ", logFlags)
	m.loggers[name] = l
	return l
}

func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.files {
		_ = f.Close()
		delete(m.files, k)
	}
}

func sanitizeWorkerName(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "worker"
	}
	v = workerNameSanitizer.ReplaceAllString(v, "_")
	v = strings.Trim(v, "._-")
	if v == "" {
		return "worker"
	}
	return strings.ToLower(v)
}

func findModuleRoot(start string) string {
	cur := start
	for {
		if _, err := os.Stat(filepath.Join(cur, "go.mod")); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Fallback: keep logs near current process dir.
			return start
		}
		cur = parent
	}
}
