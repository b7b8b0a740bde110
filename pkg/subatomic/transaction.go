package subatomic

import (
	"context"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"go.opentelemetry.io/otel/attribute"
)

const (
	kindTransaction             = "transaction"
	kindTransactionIfNotAlready = "transaction_if_not_already"
	kindSavepoint               = "savepoint"
	kindTransactionRequired     = "transaction_required"
)

// managedScope marks the atomic blocks opened by Transaction and TransactionIfNotAlready.
// A new marker is created for every acquisition.
type managedScope struct {
	kind string
}

func isManaged(block *dbx.AtomicBlock) bool {
	_, ok := block.Marker.(*managedScope)
	return ok
}

// outermostManaged reports whether no managed block is open on conn, so that the next one is the outermost.
func outermostManaged(conn *dbx.Connection) bool {
	for _, block := range conn.AtomicBlocks() {
		if isManaged(block) {
			return false
		}
	}

	return true
}

// Transaction returns a scope that opens a new durable transaction.
//
// Opening fails while any other transaction is open on the connection (test case wrappers excepted), and while
// after-commit callbacks are pending, see Settings. The body runs in the transaction, which is committed on clean
// exit and rolled back otherwise. When the transaction is opened directly inside a test case wrapper, its clean exit
// runs the after-commit callbacks as the real commit would have.
func (m *Manager) Transaction(opts ...Option) Decorator {
	o := buildOptions(opts)

	s := &scope{m: m, kind: kindTransaction, alias: o.using}
	s.enter = func(ctx context.Context) (context.Context, exitFunc, error) {
		conn, err := m.conns.Get(o.using)
		if err != nil {
			return nil, nil, err
		}

		return m.openTransaction(ctx, conn, m.settings, kindTransaction)
	}

	return decorator{s}
}

// TransactionIfNotAlready returns a scope that behaves like Transaction when no transaction is open on the
// connection, and does nothing otherwise: no savepoint is created and the callbacks registered in the body belong
// to the enclosing transaction.
func (m *Manager) TransactionIfNotAlready(opts ...Option) Decorator {
	o := buildOptions(opts)

	s := &scope{m: m, kind: kindTransactionIfNotAlready, alias: o.using}
	s.enter = func(ctx context.Context) (context.Context, exitFunc, error) {
		conn, err := m.conns.Get(o.using)
		if err != nil {
			return nil, nil, err
		}

		if inTransaction(conn) {
			return ctx, passThrough, nil
		}

		return m.openTransaction(ctx, conn, m.settings, kindTransactionIfNotAlready)
	}

	return decorator{s}
}

// Savepoint returns a scope that runs its body in a savepoint of the open transaction, released on clean exit
// and rolled back to otherwise. It fails with *MissingRequiredTransactionError outside of a transaction.
//
// The returned Scope is not a Decorator.
func (m *Manager) Savepoint(opts ...Option) Scope {
	o := buildOptions(opts)

	s := &scope{m: m, kind: kindSavepoint, alias: o.using}
	s.enter = func(ctx context.Context) (context.Context, exitFunc, error) {
		conn, err := m.conns.Get(o.using)
		if err != nil {
			return nil, nil, err
		}

		if !inTransaction(conn) {
			return nil, nil, &MissingRequiredTransactionError{Connection: conn.Alias()}
		}

		block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{})
		if err != nil {
			return nil, nil, err
		}

		return ctx, func(ctx context.Context, bodyErr error) error {
			return exitError(bodyErr, conn.ExitAtomic(ctx, block, bodyErr))
		}, nil
	}

	return s
}

func (m *Manager) openTransaction(ctx context.Context, conn *dbx.Connection, settings Settings, kind string) (context.Context, exitFunc, error) {
	if !inTransaction(conn) {
		if err := checkPendingCallbacks(conn, settings); err != nil {
			return nil, nil, err
		}
	}

	// A test case wrapper opened inside a managed transaction leaves the commit to that transaction.
	emulateCommit := settings.RunAfterCommitCallbacksInTests && conn.InnermostIsTestcase() && outermostManaged(conn)

	ctx, span := m.startSpan(ctx, kind,
		attribute.String("db.connection", conn.Alias()),
		attribute.Bool("subatomic.emulate_commit", emulateCommit))

	block, err := conn.EnterAtomic(ctx, dbx.AtomicOptions{Durable: true, Marker: &managedScope{kind: kind}})
	if err != nil {
		endSpan(span, err)
		return nil, nil, err
	}

	return ctx, func(ctx context.Context, bodyErr error) error {
		err := exitError(bodyErr, conn.ExitAtomic(ctx, block, bodyErr))
		if err == nil && emulateCommit {
			err = conn.RunAndClearCommitHooks(ctx)
		}

		endSpan(span, err)

		return err
	}, nil
}

func passThrough(_ context.Context, bodyErr error) error {
	return bodyErr
}
