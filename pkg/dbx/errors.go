package dbx

import (
	"errors"
	"fmt"
)

var (
	// ErrDurableNested is returned when a durable atomic block is requested inside another
	// atomic block that was not opened by a test case.
	ErrDurableNested = errors.New("a durable atomic block cannot be nested within another atomic block")
	// ErrAtomicOrder is returned when an atomic block other than the innermost one is exited.
	ErrAtomicOrder = errors.New("atomic blocks must be exited innermost first")
	// ErrNoTransaction is returned by savepoint operations outside of a transaction.
	ErrNoTransaction = errors.New("no transaction is open")
	// ErrInAtomicBlock is returned by manual transaction management inside an atomic block.
	ErrInAtomicBlock = errors.New("manual transaction management is forbidden inside an atomic block")
	// ErrManualOnCommit is returned when an after-commit callback is registered in a manual transaction.
	ErrManualOnCommit = errors.New("after-commit callbacks cannot be used in manual transaction management")
	// ErrForcedRollback is the failure recorded on atomic blocks unwound by Connection.ForceRollback.
	ErrForcedRollback = errors.New("atomic block forcibly rolled back")
)

// UnknownConnectionError is returned when an alias is not registered in Connections.
type UnknownConnectionError struct {
	Alias string
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("the connection %q doesn't exist", e.Alias)
}
