package subatomic

import (
	"context"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
)

// RunAfterCommit registers fn to run once the transaction open on the connection commits.
//
// Callbacks run in registration order. A callback registered in a scope that is rolled back never runs. The first
// failing callback stops the ones queued after it and its error is returned by the exit of the committing scope,
// unless it was registered with Robust, in which case the failure is only logged.
//
// Outside of a transaction, fn fails with *MissingRequiredTransactionError when
// Settings.AfterCommitNeedsTransaction is set, and runs immediately otherwise. Under a test case wrapper with
// Settings.RunAfterCommitCallbacksInTests off, it is queued on the wrapper, which never commits.
func (m *Manager) RunAfterCommit(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	o := buildOptions(opts)
	settings := m.settings

	conn, err := m.conns.Get(o.using)
	if err != nil {
		return err
	}

	cb := dbx.NewCallback(fn, o.robust)
	if o.name != "" {
		cb.Name = o.name
	}

	if inTransaction(conn) {
		return conn.OnCommit(ctx, cb)
	}

	if settings.AfterCommitNeedsTransaction {
		return &MissingRequiredTransactionError{Connection: conn.Alias()}
	}

	if conn.InnermostIsTestcase() && settings.RunAfterCommitCallbacksInTests {
		return conn.RunNow(ctx, cb)
	}

	return conn.OnCommit(ctx, cb)
}
