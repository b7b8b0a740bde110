// Package subatomic layers strict transaction semantics over the atomic blocks of package dbx.
//
// A Manager opens transactions and savepoints, refuses to open a transaction while after-commit callbacks from an
// enclosing scope are pending, guards functions that need (or must not have) a transaction, and emulates commits
// under a test case wrapper transaction that is never committed.
//
// Every operation reads the state of the dbx connections directly. A Manager holds no transaction state of its
// own, and like the connections it drives it must not be shared between goroutines while a scope is open.
package subatomic

import (
	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/logx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/marcodd23/go-subatomic/pkg/subatomic"

// Manager is the entry point of the package.
type Manager struct {
	conns    *dbx.Connections
	settings Settings
	logger   logx.Logger
	tracer   trace.Tracer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSettings replaces DefaultSettings.
func WithSettings(settings Settings) ManagerOption {
	return func(m *Manager) {
		m.settings = settings
	}
}

// WithLogger replaces the global logx logger, for the Manager and for the connections it drives.
func WithLogger(logger logx.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
		m.conns.SetLogger(logger)
	}
}

// WithTracerProvider replaces the global OpenTelemetry tracer provider.
func WithTracerProvider(provider trace.TracerProvider) ManagerOption {
	return func(m *Manager) {
		m.tracer = provider.Tracer(instrumentationName)
	}
}

// NewManager creates a Manager over the given connections.
func NewManager(conns *dbx.Connections, opts ...ManagerOption) *Manager {
	m := &Manager{
		conns:    conns,
		settings: DefaultSettings(),
		logger:   logx.GetLogger(),
		tracer:   otel.GetTracerProvider().Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithSettings returns a copy of the Manager using other settings. The connections are shared.
func (m *Manager) WithSettings(settings Settings) *Manager {
	clone := *m
	clone.settings = settings

	return &clone
}

// Settings returns the settings in use.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Logger returns the logger in use.
func (m *Manager) Logger() logx.Logger {
	return m.logger
}

// Connections returns the connections the Manager drives.
func (m *Manager) Connections() *dbx.Connections {
	return m.conns
}

// Option configures a single operation.
type Option func(*options)

type options struct {
	using  string
	robust bool
	name   string
}

// Using selects the connection, dbx.DefaultAlias when not given.
func Using(alias string) Option {
	return func(o *options) {
		o.using = alias
	}
}

// Robust marks an after-commit callback as robust: its failure is logged and the following callbacks still run.
func Robust() Option {
	return func(o *options) {
		o.robust = true
	}
}

// Named overrides the name an after-commit callback is reported with.
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func buildOptions(opts []Option) options {
	o := options{using: dbx.DefaultAlias}
	for _, opt := range opts {
		opt(&o)
	}

	if o.using == "" {
		o.using = dbx.DefaultAlias
	}

	return o
}
