package dbx

import (
	"context"
)

// Driver defines the contract a database backend must satisfy to be tracked by a Connection.
//
// A Driver owns exactly one physical session to the database. The Connection on top of it decides which
// transaction-control statements to send, in which order, and keeps the bookkeeping (atomic blocks, savepoints,
// after-commit callbacks) that the database itself does not expose.
//
// Responsibilities of a Driver include:
//   - Opening the physical session lazily, only when Connect is called.
//   - Reporting whether the session is open without opening it.
//   - Executing transaction-control statements (BEGIN, COMMIT, ROLLBACK, SAVEPOINT <id>,
//     RELEASE SAVEPOINT <id>, ROLLBACK TO SAVEPOINT <id>) on that very session.
//   - Releasing the session on Close.
//
// Example Implementation:
//
//	pgxdb.PostgresDriver pins one connection acquired from a pgxpool.Pool and runs every statement on it,
//	so that BEGIN and the statements that follow it share the same server-side transaction.
type Driver interface {
	Connect(ctx context.Context) error
	Connected() bool
	Execute(ctx context.Context, stmt string) error
	Close(ctx context.Context) error
}
