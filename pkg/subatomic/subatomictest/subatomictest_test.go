package subatomictest_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/dbx/dbxtest"
	"github.com/marcodd23/go-subatomic/pkg/logx"
	"github.com/marcodd23/go-subatomic/pkg/subatomic"
	"github.com/marcodd23/go-subatomic/pkg/subatomic/subatomictest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_OpensTestcaseTransactionAndRollsItBack(t *testing.T) {
	conns, drivers := dbxtest.NewConnections(dbx.DefaultAlias, "other")

	t.Run("test", func(t *testing.T) {
		subatomictest.Begin(t, conns)

		conn, err := conns.Get(dbx.DefaultAlias)
		require.NoError(t, err)
		assert.True(t, conn.InnermostIsTestcase())
		assert.Zero(t, conn.RealDepth())

		// left open on purpose, unwound at cleanup
		_, err = conn.EnterAtomic(context.Background(), dbx.AtomicOptions{})
		require.NoError(t, err)
	})

	assert.Equal(t, []string{"BEGIN", "SAVEPOINT", "ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT", "ROLLBACK"},
		drivers[dbx.DefaultAlias].Kinds())
	assert.Empty(t, drivers["other"].Queries())
}

func TestBegin_SeveralConnections(t *testing.T) {
	conns, drivers := dbxtest.NewConnections(dbx.DefaultAlias, "other")

	t.Run("test", func(t *testing.T) {
		subatomictest.Begin(t, conns, dbx.DefaultAlias, "other")

		m := subatomic.NewManager(conns)
		assert.Empty(t, m.OpenTransactionConnections())
	})

	for alias, driver := range drivers {
		assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, driver.Queries(), alias)
	}
}

func TestPartOfATransaction(t *testing.T) {
	conns, drivers := dbxtest.NewConnections()
	subatomictest.Begin(t, conns)
	drivers[dbx.DefaultAlias].Reset()

	m := subatomic.NewManager(conns)
	guarded := m.TransactionRequired().Wrap(func(ctx context.Context) error {
		return nil
	})

	var missing *subatomic.MissingRequiredTransactionError
	require.ErrorAs(t, guarded(context.Background()), &missing)

	require.NoError(t, subatomictest.PartOfATransaction(context.Background(), m, dbx.DefaultAlias, guarded))
	assert.Equal(t, []string{"SAVEPOINT", "RELEASE SAVEPOINT"}, drivers[dbx.DefaultAlias].Kinds())
}

func TestPartOfATransaction_RollsBackOnError(t *testing.T) {
	conns, drivers := dbxtest.NewConnections()
	subatomictest.Begin(t, conns)
	drivers[dbx.DefaultAlias].Reset()

	errBody := errors.New("body failed")
	m := subatomic.NewManager(conns)

	err := subatomictest.PartOfATransaction(context.Background(), m, dbx.DefaultAlias, func(ctx context.Context) error {
		return errBody
	})

	assert.Same(t, errBody, err)
	assert.Equal(t, []string{"SAVEPOINT", "ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT"}, drivers[dbx.DefaultAlias].Kinds())
}

func TestPartOfATransaction_UnknownConnection(t *testing.T) {
	conns, _ := dbxtest.NewConnections()
	m := subatomic.NewManager(conns)

	err := subatomictest.PartOfATransaction(context.Background(), m, "missing", func(ctx context.Context) error {
		return nil
	})

	var unknown *dbx.UnknownConnectionError
	assert.ErrorAs(t, err, &unknown)
}

func TestPartOfATransaction_LogsRollbackFailureOnPanic(t *testing.T) {
	conns, drivers := dbxtest.NewConnections(dbx.DefaultAlias)
	subatomictest.Begin(t, conns)

	var buf bytes.Buffer
	m := subatomic.NewManager(conns, subatomic.WithLogger(logx.NewZeroLogger(&buf, "error")))
	drivers[dbx.DefaultAlias].FailOn("ROLLBACK TO SAVEPOINT", errors.New("connection lost"))
	t.Cleanup(func() {
		drivers[dbx.DefaultAlias].FailOn("ROLLBACK TO SAVEPOINT", nil)
	})

	assert.PanicsWithValue(t, "boom", func() {
		_ = subatomictest.PartOfATransaction(context.Background(), m, dbx.DefaultAlias, func(ctx context.Context) error {
			panic("boom")
		})
	})

	assert.Contains(t, buf.String(), "error rolling back the atomic block of default")
	assert.Contains(t, buf.String(), "connection lost")

	conn, err := conns.Get(dbx.DefaultAlias)
	require.NoError(t, err)
	assert.True(t, conn.InnermostIsTestcase())
}
