package subatomic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/dbx/dbxtest"
	"github.com/marcodd23/go-subatomic/pkg/subatomic"
	"github.com/marcodd23/go-subatomic/pkg/subatomic/subatomictest"
	"github.com/stretchr/testify/require"
)

const (
	defaultDB = dbx.DefaultAlias
	otherDB   = "other"
)

var errBody = errors.New("body failed")

// env is a Manager over two recording connections.
type env struct {
	m       *subatomic.Manager
	conns   *dbx.Connections
	drivers map[string]*dbxtest.Driver
}

func newEnv(t *testing.T, opts ...subatomic.ManagerOption) *env {
	t.Helper()

	conns, drivers := dbxtest.NewConnections(defaultDB, otherDB)

	return &env{m: subatomic.NewManager(conns, opts...), conns: conns, drivers: drivers}
}

// newTestcaseEnv opens the test case wrapper on both connections.
func newTestcaseEnv(t *testing.T, opts ...subatomic.ManagerOption) *env {
	t.Helper()

	e := newEnv(t, opts...)
	subatomictest.Begin(t, e.conns, defaultDB, otherDB)
	e.drivers[defaultDB].Reset()
	e.drivers[otherDB].Reset()

	return e
}

// harnesses runs f once without and once with the test case wrapper.
func harnesses(t *testing.T, f func(t *testing.T, newEnv func(t *testing.T, opts ...subatomic.ManagerOption) *env)) {
	t.Run("no transaction", func(t *testing.T) {
		f(t, newEnv)
	})
	t.Run("testcase transaction", func(t *testing.T) {
		f(t, newTestcaseEnv)
	})
}

func (e *env) conn(t *testing.T, alias string) *dbx.Connection {
	t.Helper()

	conn, err := e.conns.Get(alias)
	require.NoError(t, err)

	return conn
}

func (e *env) inTransaction(t *testing.T, alias string) bool {
	t.Helper()

	in, err := e.m.InTransaction(subatomic.Using(alias))
	require.NoError(t, err)

	return in
}

// recorder collects the names of the callbacks it has run.
type recorder struct {
	calls []string
}

func (r *recorder) callback(name string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) failing(name string, err error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		r.calls = append(r.calls, name)
		return err
	}
}

func succeed(ctx context.Context) error {
	return nil
}

func fail(ctx context.Context) error {
	return errBody
}

// transactionScopes are the scopes that open a transaction when none is open.
func transactionScopes(m *subatomic.Manager, opts ...subatomic.Option) map[string]subatomic.Decorator {
	return map[string]subatomic.Decorator{
		"transaction":                m.Transaction(opts...),
		"transaction_if_not_already": m.TransactionIfNotAlready(opts...),
	}
}
