package subatomic

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
	"go.opentelemetry.io/otel/attribute"
)

// Durable wraps a function that must run outside of any transaction, so that its effects are committed by the
// time it returns.
//
// The returned function fails with *UnexpectedOpenTransactionError, without calling fn, when a transaction is open
// on any connection. When fn leaves transactions open, they are rolled back and an
// *UnexpectedDanglingTransactionError naming them is returned, with the error of fn as its cause. Otherwise the
// error of fn is returned unchanged. A panicking fn has its dangling transactions rolled back before the panic
// goes on.
func (m *Manager) Durable(fn Func) Func {
	return func(ctx context.Context) (err error) {
		if open := m.OpenTransactionConnections(); len(open) > 0 {
			return &UnexpectedOpenTransactionError{Connections: open}
		}

		ctx, span := m.startSpan(ctx, "durable", attribute.String("code.function", dbx.FuncName(fn)))
		defer func() {
			endSpan(span, err)
		}()

		completed := false
		defer func() {
			if !completed {
				m.rollbackDangling(ctx)
			}
		}()

		fnErr := fn(ctx)
		completed = true

		if dangling := m.rollbackDangling(ctx); len(dangling) > 0 {
			return &UnexpectedDanglingTransactionError{Connections: dangling, Cause: fnErr}
		}

		return fnErr
	}
}

// rollbackDangling rolls back the transactions open on every connection and returns their aliases.
func (m *Manager) rollbackDangling(ctx context.Context) []string {
	dangling := m.OpenTransactionConnections()

	for _, alias := range dangling {
		conn, err := m.conns.Get(alias)
		if err != nil {
			continue
		}

		m.logger.LogError(ctx, fmt.Sprintf("rolling back the transaction left open by a durable function on %s", alias))

		if err := conn.ForceRollback(ctx); err != nil {
			m.logger.LogError(ctx, fmt.Sprintf("error rolling back the dangling transaction on %s", alias), err)
		}
	}

	return dangling
}
