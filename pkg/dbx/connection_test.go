package dbx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/dbx/dbxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBody = errors.New("body failed")

func newConnection(t *testing.T) (*dbx.Connection, *dbxtest.Driver) {
	t.Helper()

	conns, drivers := dbxtest.NewConnections(dbx.DefaultAlias)
	conn, err := conns.Get(dbx.DefaultAlias)
	require.NoError(t, err)

	return conn, drivers[dbx.DefaultAlias]
}

func recorder(calls *[]string, name string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestOutermostBlockBeginsAndCommits(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	assert.False(t, conn.Connected())

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	assert.True(t, conn.Connected())
	assert.False(t, conn.Autocommit())
	assert.True(t, block.Outermost())
	assert.True(t, conn.InAtomicBlock())
	assert.Equal(t, 1, conn.Depth())

	require.NoError(t, conn.ExitAtomic(ctx, block, nil))
	assert.False(t, conn.InAtomicBlock())
	assert.True(t, conn.Autocommit())
	assert.Equal(t, 0, conn.Depth())
	assert.Equal(t, []string{"BEGIN", "COMMIT"}, driver.Queries())
}

func TestNestedBlocksUseSavepoints(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	outer, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	inner, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, inner.Savepoint())

	require.NoError(t, conn.ExitAtomic(ctx, inner, nil))
	require.NoError(t, conn.ExitAtomic(ctx, outer, nil))

	assert.Equal(t, []string{
		"BEGIN",
		"SAVEPOINT " + inner.Savepoint(),
		"RELEASE SAVEPOINT " + inner.Savepoint(),
		"COMMIT",
	}, driver.Queries())
}

func TestFailedNestedBlockRollsBackToSavepoint(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	outer, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	inner, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)

	require.NoError(t, conn.ExitAtomic(ctx, inner, errBody))
	require.NoError(t, conn.ExitAtomic(ctx, outer, errBody))

	assert.Equal(t, []string{"BEGIN", "SAVEPOINT", "ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT", "ROLLBACK"}, driver.Kinds())
	assert.True(t, conn.Autocommit())
}

func TestExitOutOfOrderIsRefused(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	outer, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	_, err = conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, conn.ExitAtomic(ctx, outer, nil), dbx.ErrAtomicOrder)
	assert.Equal(t, 2, conn.Depth())
}

func TestDurableBlockCannotNest(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	outer, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)

	_, err = conn.EnterAtomic(ctx, dbx.AtomicOptions{Durable: true})
	assert.ErrorIs(t, err, dbx.ErrDurableNested)
	assert.Equal(t, 1, conn.Depth())
	assert.Equal(t, []string{"BEGIN"}, driver.Queries())

	require.NoError(t, conn.ExitAtomic(ctx, outer, nil))
}

func TestDurableBlockNestsInTestcaseBlock(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	wrapper, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{FromTestcase: true})
	require.NoError(t, err)
	assert.True(t, conn.InnermostIsTestcase())
	assert.Equal(t, 0, conn.RealDepth())

	durable, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{Durable: true})
	require.NoError(t, err)
	assert.Equal(t, 1, conn.RealDepth())
	assert.False(t, conn.InnermostIsTestcase())

	require.NoError(t, conn.ExitAtomic(ctx, durable, nil))
	require.NoError(t, conn.ExitAtomic(ctx, wrapper, errBody))
}

func TestCallbacksRunInOrderAfterCommit(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "A"), false)))
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "B"), false)))
	assert.Len(t, conn.PendingCallbacks(), 2)
	assert.Empty(t, calls)

	require.NoError(t, conn.ExitAtomic(ctx, block, nil))
	assert.Equal(t, []string{"A", "B"}, calls)
	assert.Empty(t, conn.PendingCallbacks())
}

func TestCallbacksDroppedOnRollback(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "C"), false)))

	require.NoError(t, conn.ExitAtomic(ctx, block, errBody))
	assert.Empty(t, calls)
	assert.Empty(t, conn.PendingCallbacks())
}

func TestCallbacksOfRolledBackSavepointAreDropped(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string

	outer, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "kept"), false)))

	inner, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "dropped"), false)))
	require.NoError(t, conn.ExitAtomic(ctx, inner, errBody))

	released, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "released"), false)))
	require.NoError(t, conn.ExitAtomic(ctx, released, nil))

	require.NoError(t, conn.ExitAtomic(ctx, outer, nil))
	assert.Equal(t, []string{"kept", "released"}, calls)
}

func TestRobustCallbackFailureDoesNotStopBatch(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(func(ctx context.Context) error {
		return errors.New("robust failure")
	}, true)))
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(func(ctx context.Context) error {
		panic("robust panic")
	}, true)))
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "after"), false)))

	require.NoError(t, conn.ExitAtomic(ctx, block, nil))
	assert.Equal(t, []string{"after"}, calls)
}

func TestNonRobustCallbackFailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string
	failure := errors.New("callback failed")

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "first"), false)))
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(func(ctx context.Context) error { return failure }, false)))
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "never"), false)))

	err = conn.ExitAtomic(ctx, block, nil)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"first"}, calls)
	assert.Empty(t, conn.PendingCallbacks())
	assert.True(t, conn.Autocommit())
}

func TestOnCommitInAutocommitRunsImmediately(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	var calls []string

	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "now"), false)))
	assert.Equal(t, []string{"now"}, calls)
	assert.False(t, conn.Connected())
}

func TestManualTransaction(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	require.NoError(t, conn.SetAutocommit(ctx, false))
	assert.True(t, conn.InManualTransaction())
	assert.ErrorIs(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(new([]string), "x"), false)), dbx.ErrManualOnCommit)

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	assert.False(t, block.Outermost())
	assert.ErrorIs(t, conn.SetAutocommit(ctx, true), dbx.ErrInAtomicBlock)
	require.NoError(t, conn.ExitAtomic(ctx, block, nil))
	assert.True(t, conn.InManualTransaction())

	require.NoError(t, conn.Rollback(ctx))
	assert.False(t, conn.InManualTransaction())
	assert.Equal(t, []string{"BEGIN", "SAVEPOINT", "RELEASE SAVEPOINT", "ROLLBACK"}, driver.Kinds())
}

func TestExplicitSavepoints(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	_, err := conn.Savepoint(ctx)
	assert.ErrorIs(t, err, dbx.ErrNoTransaction)

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)

	sid, err := conn.Savepoint(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.SavepointRollback(ctx, sid))

	sid2, err := conn.Savepoint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, sid, sid2)
	require.NoError(t, conn.SavepointCommit(ctx, sid2))

	require.NoError(t, conn.ExitAtomic(ctx, block, nil))
	assert.Equal(t, []string{
		"BEGIN",
		"SAVEPOINT", "ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT",
		"SAVEPOINT", "RELEASE SAVEPOINT",
		"COMMIT",
	}, driver.Kinds())
}

func TestForceRollbackKeepsTestcaseBlocks(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)

	wrapper, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{FromTestcase: true})
	require.NoError(t, err)
	_, err = conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	_, err = conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	driver.Reset()

	require.NoError(t, conn.ForceRollback(ctx))
	assert.Equal(t, 1, conn.Depth())
	assert.Equal(t, []*dbx.AtomicBlock{wrapper}, conn.AtomicBlocks())
	assert.Equal(t, []string{
		"ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT",
		"ROLLBACK TO SAVEPOINT", "RELEASE SAVEPOINT",
	}, driver.Kinds())
}

func TestForceRollbackEndsManualTransaction(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)

	require.NoError(t, conn.SetAutocommit(ctx, false))
	require.NoError(t, conn.ForceRollback(ctx))
	assert.True(t, conn.Autocommit())
}

func TestFailedCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)
	commitErr := errors.New("serialization failure")
	var calls []string

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	require.NoError(t, err)
	require.NoError(t, conn.OnCommit(ctx, dbx.NewCallback(recorder(&calls, "never"), false)))

	driver.FailOn("COMMIT", commitErr)
	err = conn.ExitAtomic(ctx, block, nil)

	assert.ErrorIs(t, err, commitErr)
	assert.Empty(t, calls)
	assert.True(t, conn.Autocommit())
	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, driver.Queries())
}

func TestConnectFailureIsReported(t *testing.T) {
	ctx := context.Background()
	conn, driver := newConnection(t)
	refused := errors.New("connection refused")

	driver.FailOn("CONNECT", refused)
	_, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})

	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 0, conn.Depth())
}
