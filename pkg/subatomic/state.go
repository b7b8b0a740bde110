package subatomic

import "github.com/marcodd23/go-subatomic/pkg/dbx"

// InTransaction reports whether a transaction is open on the connection.
//
// Atomic blocks opened by a test case wrapper are not counted, a manual transaction is. A connection that is not
// connected is never in a transaction, and is not connected to find out.
func (m *Manager) InTransaction(opts ...Option) (bool, error) {
	conn, err := m.conns.Get(buildOptions(opts).using)
	if err != nil {
		return false, err
	}

	return inTransaction(conn), nil
}

// OpenTransactionConnections returns the sorted aliases of the connections with an open transaction, with the
// same rules as InTransaction.
func (m *Manager) OpenTransactionConnections() []string {
	open := []string{}

	for _, conn := range m.conns.All() {
		if inTransaction(conn) {
			open = append(open, conn.Alias())
		}
	}

	return open
}

func inTransaction(conn *dbx.Connection) bool {
	if !conn.Connected() {
		return false
	}

	return conn.RealDepth() > 0 || conn.InManualTransaction()
}
