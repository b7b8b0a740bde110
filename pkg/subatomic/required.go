package subatomic

import "context"

// TransactionRequired returns a scope that fails with *MissingRequiredTransactionError, without running the body,
// when no transaction is open on the connection. Otherwise it runs the body as is.
func (m *Manager) TransactionRequired(opts ...Option) Decorator {
	o := buildOptions(opts)

	s := &scope{m: m, kind: kindTransactionRequired, alias: o.using}
	s.enter = func(ctx context.Context) (context.Context, exitFunc, error) {
		if err := m.requireTransaction(o.using); err != nil {
			return nil, nil, err
		}

		return ctx, passThrough, nil
	}

	return decorator{s}
}

func (m *Manager) requireTransaction(alias string) error {
	conn, err := m.conns.Get(alias)
	if err != nil {
		return err
	}

	if !inTransaction(conn) {
		return &MissingRequiredTransactionError{Connection: conn.Alias()}
	}

	return nil
}
