// Package subatomictest provides the test case wrapper transaction expected by package subatomic.
//
// Begin opens, on each given connection, an atomic block flagged as a test case block and rolls it back when the
// test ends, so that every test starts from, and leaves, the same database state. Scopes of package subatomic
// see through these blocks: InTransaction is false right after Begin.
package subatomictest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"github.com/marcodd23/go-subatomic/pkg/subatomic"
	"github.com/stretchr/testify/require"
)

// ErrTestcaseRollback is the failure test case blocks are rolled back with.
var ErrTestcaseRollback = errors.New("test case transaction rolled back")

// Begin opens a test case wrapper transaction on each alias, dbx.DefaultAlias when none is given.
// The wrappers are rolled back, together with anything the test left open above them, on test cleanup.
func Begin(t testing.TB, conns *dbx.Connections, aliases ...string) {
	t.Helper()

	if len(aliases) == 0 {
		aliases = []string{dbx.DefaultAlias}
	}

	ctx := context.Background()

	for _, alias := range aliases {
		conn, err := conns.Get(alias)
		require.NoError(t, err)

		block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{FromTestcase: true})
		require.NoError(t, err)

		t.Cleanup(func() {
			require.NoError(t, Rollback(ctx, conn, block))
		})
	}
}

// Rollback unwinds everything open above block, then rolls block back.
func Rollback(ctx context.Context, conn *dbx.Connection, block *dbx.AtomicBlock) error {
	var errs []error

	blocks := conn.AtomicBlocks()
	for i := len(blocks) - 1; i >= 0 && blocks[i] != block; i-- {
		if err := conn.ExitAtomic(ctx, blocks[i], ErrTestcaseRollback); err != nil {
			errs = append(errs, err)
		}
	}

	if err := conn.ExitAtomic(ctx, block, ErrTestcaseRollback); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// PartOfATransaction runs fn inside a plain atomic block, so that code requiring a transaction can be called
// directly from a test.
//
// The block is not managed by subatomic: it does not emulate the commit, and the after-commit callbacks registered
// in fn are left to the enclosing transaction. Use Manager.Transaction to have them run.
func PartOfATransaction(ctx context.Context, m *subatomic.Manager, alias string, fn subatomic.Func) (err error) {
	conn, err := m.Connections().Get(alias)
	if err != nil {
		return err
	}

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
	if err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed {
			if exitErr := conn.ExitAtomic(ctx, block, ErrTestcaseRollback); exitErr != nil {
				m.Logger().With("connection", alias).LogError(ctx,
					fmt.Sprintf("error rolling back the atomic block of %s", alias), exitErr)
			}
		}
	}()

	fnErr := fn(ctx)
	completed = true

	if exitErr := conn.ExitAtomic(ctx, block, fnErr); exitErr != nil {
		return errors.Join(fnErr, exitErr)
	}

	return fnErr
}
