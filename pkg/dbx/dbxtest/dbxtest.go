// Package dbxtest provides an in-memory dbx.Driver that records the statements it receives.
package dbxtest

import (
	"context"
	"strings"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
)

// Driver is a dbx.Driver that keeps every executed statement in memory.
//
// Failures can be injected per statement prefix with FailOn.
type Driver struct {
	connected bool
	connects  int
	queries   []string
	failures  map[string]error
}

var _ dbx.Driver = (*Driver)(nil)

// NewDriver returns a disconnected recording driver.
func NewDriver() *Driver {
	return &Driver{failures: map[string]error{}}
}

// NewConnections registers one recording driver per alias and returns both the registry and the drivers.
func NewConnections(aliases ...string) (*dbx.Connections, map[string]*Driver) {
	if len(aliases) == 0 {
		aliases = []string{dbx.DefaultAlias}
	}

	drivers := make(map[string]*Driver, len(aliases))
	registry := make(map[string]dbx.Driver, len(aliases))
	for _, alias := range aliases {
		d := NewDriver()
		drivers[alias] = d
		registry[alias] = d
	}

	return dbx.NewConnections(registry), drivers
}

// Connect opens the fake session.
func (d *Driver) Connect(ctx context.Context) error {
	if err := d.failure("CONNECT"); err != nil {
		return err
	}

	d.connected = true
	d.connects++

	return nil
}

// Connected reports whether Connect was called since the last Close.
func (d *Driver) Connected() bool {
	return d.connected
}

// Execute records stmt, or returns the failure registered for it.
func (d *Driver) Execute(ctx context.Context, stmt string) error {
	if err := d.failure(stmt); err != nil {
		return err
	}

	d.queries = append(d.queries, stmt)

	return nil
}

// Close closes the fake session.
func (d *Driver) Close(ctx context.Context) error {
	d.connected = false
	return nil
}

// FailOn makes every statement starting with prefix fail with err. A nil err clears it.
func (d *Driver) FailOn(prefix string, err error) {
	if err == nil {
		delete(d.failures, prefix)
		return
	}

	d.failures[prefix] = err
}

// Queries returns the statements executed so far.
func (d *Driver) Queries() []string {
	return append([]string(nil), d.queries...)
}

// Reset forgets the recorded statements.
func (d *Driver) Reset() {
	d.queries = nil
}

// Connects returns how many times Connect succeeded.
func (d *Driver) Connects() int {
	return d.connects
}

// Kinds returns the recorded statements with savepoint names stripped,
// e.g. "SAVEPOINT s1a2b3c4d_x1" becomes "SAVEPOINT".
func (d *Driver) Kinds() []string {
	kinds := make([]string, 0, len(d.queries))
	for _, q := range d.queries {
		kinds = append(kinds, kind(q))
	}

	return kinds
}

func kind(stmt string) string {
	for _, prefix := range []string{"ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT", "SAVEPOINT"} {
		if strings.HasPrefix(stmt, prefix) {
			return prefix
		}
	}

	return stmt
}

func (d *Driver) failure(stmt string) error {
	for prefix, err := range d.failures {
		if strings.HasPrefix(stmt, prefix) {
			return err
		}
	}

	return nil
}
