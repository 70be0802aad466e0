package output

import (
	"errors"
	"io"

	"github.com/axeq/takeoverme/internal/config"
	"github.com/axeq/takeoverme/internal/takeover"
)

// Manager owns the sinks and observers configured for a run
type Manager struct {
	sinks    MultiSink
	closers  []io.Closer
	console  *Console
	progress *Progress
	extra    []takeover.Observer
}

// NewManager opens the configured output files. total is the number of
// subdomains, used to size the progress bar.
func NewManager(cfg *config.Config, total int, stdout, stderr io.Writer) (*Manager, error) {
	m := &Manager{console: NewConsole(stdout, stderr, cfg.Verbose)}

	text, err := NewFileSink(cfg.OutputFile)
	if err != nil {
		return nil, err
	}
	m.sinks = append(m.sinks, text)
	m.closers = append(m.closers, text)

	if cfg.JSONOutputFile != "" {
		js, err := NewJSONLinesSink(cfg.JSONOutputFile)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.sinks = append(m.sinks, js)
		m.closers = append(m.closers, js)
	}

	if cfg.Progress && !cfg.Silent {
		m.progress = NewProgress(total, stderr)
	}
	return m, nil
}

// Sink returns the sink findings are written to
func (m *Manager) Sink() takeover.Sink {
	if len(m.sinks) == 1 {
		return m.sinks[0]
	}
	return m.sinks
}

// AddObserver registers an extra observer, such as persistent storage
func (m *Manager) AddObserver(o takeover.Observer) {
	m.extra = append(m.extra, o)
}

// Observers returns every observer to attach to the checker
func (m *Manager) Observers() []takeover.Observer {
	obs := []takeover.Observer{m.console}
	if m.progress != nil {
		obs = append(obs, m.progress)
	}
	return append(obs, m.extra...)
}

// Console returns the console observer
func (m *Manager) Console() *Console {
	return m.console
}

// Close finishes the progress bar and closes every output file. Calling it
// again is a no-op.
func (m *Manager) Close() error {
	var errs []error
	if m.progress != nil {
		errs = append(errs, m.progress.Finish())
	}
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.progress = nil
	m.closers = nil
	return errors.Join(errs...)
}
