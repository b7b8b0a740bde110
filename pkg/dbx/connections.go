package dbx

import (
	"context"
	"errors"
	"sort"

	"github.com/marcodd23/go-subatomic/pkg/logx"
)

// DefaultAlias is the alias used when none is given.
const DefaultAlias = "default"

// Connections is the registry of named connections of a process (or of a test).
//
// Each alias maps to exactly one Connection, so that the transaction state of an alias is tracked in a single
// place. Connections on different aliases are fully independent.
type Connections struct {
	conns map[string]*Connection
}

// NewConnections registers one Connection per alias.
func NewConnections(drivers map[string]Driver) *Connections {
	conns := make(map[string]*Connection, len(drivers))
	for alias, driver := range drivers {
		conns[alias] = NewConnection(alias, driver)
	}

	return &Connections{conns: conns}
}

// Get returns the connection registered under alias, DefaultAlias when empty.
func (c *Connections) Get(alias string) (*Connection, error) {
	if alias == "" {
		alias = DefaultAlias
	}

	conn, ok := c.conns[alias]
	if !ok {
		return nil, &UnknownConnectionError{Alias: alias}
	}

	return conn, nil
}

// Aliases returns the registered aliases, sorted.
func (c *Connections) Aliases() []string {
	aliases := make([]string, 0, len(c.conns))
	for alias := range c.conns {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	return aliases
}

// All returns the registered connections, sorted by alias.
func (c *Connections) All() []*Connection {
	all := make([]*Connection, 0, len(c.conns))
	for _, alias := range c.Aliases() {
		all = append(all, c.conns[alias])
	}

	return all
}

// SetLogger sets the logger of every connection, see Connection.SetLogger.
func (c *Connections) SetLogger(logger logx.Logger) {
	for _, conn := range c.conns {
		conn.SetLogger(logger)
	}
}

// Close closes every connection and reports all failures.
func (c *Connections) Close(ctx context.Context) error {
	var errs []error
	for _, conn := range c.All() {
		if err := conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
