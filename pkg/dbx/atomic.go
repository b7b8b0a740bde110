package dbx

// AtomicOptions configures Connection.EnterAtomic.
type AtomicOptions struct {
	// Durable blocks refuse to nest inside any atomic block except a test case one.
	Durable bool
	// FromTestcase flags the wrapper transaction a test harness opens around each test.
	FromTestcase bool
	// Marker is an opaque token the caller can attach to the block and read back while it is open.
	Marker any
}

// AtomicBlock is one open level of a Connection's atomic block stack.
//
// The block that begins the transaction issues BEGIN/COMMIT/ROLLBACK, every other block is backed by a savepoint.
type AtomicBlock struct {
	ID           int64
	Durable      bool
	FromTestcase bool
	Marker       any

	savepoint    string
	commitOnExit bool
}

// Savepoint returns the savepoint backing the block, empty for the block that began the transaction.
func (b *AtomicBlock) Savepoint() string {
	return b.savepoint
}

// Outermost reports whether the block began the transaction and commits it on exit.
func (b *AtomicBlock) Outermost() bool {
	return b.commitOnExit
}
