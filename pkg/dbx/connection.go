package dbx

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/marcodd23/go-subatomic/pkg/errorx"
	"github.com/marcodd23/go-subatomic/pkg/logx"
)

// Connection tracks the transaction state of one named database connection.
//
// It keeps the atomic block stack, the active savepoints, the autocommit flag and the queue of after-commit
// callbacks, and drives its Driver with the matching transaction-control statements. The state lives as long as
// the Connection; nothing is persisted.
//
// A Connection is not safe for concurrent use. Like a *sql.Tx, it must be owned by one goroutine at a time.
type Connection struct {
	alias      string
	driver     Driver
	autocommit bool
	blocks     []*AtomicBlock
	savepoints []string
	onCommit   []pendingCallback
	log        logx.Logger

	savepointPrefix  string
	savepointCounter int
}

// NewConnection wraps driver under the given alias. The driver is not connected until needed.
func NewConnection(alias string, driver Driver) *Connection {
	return &Connection{
		alias:           alias,
		driver:          driver,
		autocommit:      true,
		savepointPrefix: newSavepointPrefix(),
	}
}

// Alias returns the connection name.
func (c *Connection) Alias() string {
	return c.alias
}

// SetLogger replaces the global logx logger for the statements, commits and callback failures of the connection.
// A nil logger restores the global one.
func (c *Connection) SetLogger(logger logx.Logger) {
	c.log = logger
}

// Driver returns the underlying driver.
func (c *Connection) Driver() Driver {
	return c.driver
}

// Connected reports whether the physical session is open. It never opens one.
func (c *Connection) Connected() bool {
	return c.driver.Connected()
}

// Autocommit reports whether statements run outside of a transaction.
func (c *Connection) Autocommit() bool {
	return c.autocommit
}

// InAtomicBlock reports whether at least one atomic block is open.
func (c *Connection) InAtomicBlock() bool {
	return len(c.blocks) > 0
}

// Depth returns the number of open atomic blocks.
func (c *Connection) Depth() int {
	return len(c.blocks)
}

// AtomicBlocks returns a copy of the open atomic blocks, outermost first.
func (c *Connection) AtomicBlocks() []*AtomicBlock {
	return slices.Clone(c.blocks)
}

// RealDepth returns the number of open atomic blocks that were not opened by a test case.
func (c *Connection) RealDepth() int {
	depth := 0
	for _, b := range c.blocks {
		if !b.FromTestcase {
			depth++
		}
	}

	return depth
}

// InnermostIsTestcase reports whether the innermost open block is a test case wrapper.
func (c *Connection) InnermostIsTestcase() bool {
	return len(c.blocks) > 0 && c.blocks[len(c.blocks)-1].FromTestcase
}

// InManualTransaction reports whether a transaction was opened with SetAutocommit(false)
// and no atomic block is open.
func (c *Connection) InManualTransaction() bool {
	return len(c.blocks) == 0 && !c.autocommit
}

// EnterAtomic opens an atomic block.
//
// With no block open and autocommit on, it begins a transaction. Any other block, including the outermost block
// of a manual transaction, is backed by a savepoint and leaves the final commit to the caller.
func (c *Connection) EnterAtomic(ctx context.Context, opts AtomicOptions) (*AtomicBlock, error) {
	if opts.Durable && len(c.blocks) > 0 && !c.InnermostIsTestcase() {
		return nil, fmt.Errorf("[%s] %w", c.alias, ErrDurableNested)
	}

	if err := c.ensureConnection(ctx); err != nil {
		return nil, err
	}

	block := &AtomicBlock{
		ID:           GenerateRandomInt64Id(),
		Durable:      opts.Durable,
		FromTestcase: opts.FromTestcase,
		Marker:       opts.Marker,
	}

	switch {
	case len(c.blocks) > 0 || !c.autocommit:
		sid := c.nextSavepoint()
		if err := c.execute(ctx, "SAVEPOINT "+sid); err != nil {
			return nil, err
		}
		block.savepoint = sid
		c.savepoints = append(c.savepoints, sid)
	case c.autocommit:
		if err := c.execute(ctx, "BEGIN"); err != nil {
			return nil, err
		}
		c.autocommit = false
		block.commitOnExit = true
	}

	c.blocks = append(c.blocks, block)
	c.logger().LogDebug(ctx, fmt.Sprintf("entered atomic block %d at depth %d", block.ID, len(c.blocks)))

	return block, nil
}

// ExitAtomic closes the innermost atomic block.
//
// A nil failure commits the block: the savepoint is released, or the transaction committed and the after-commit
// queue run. A non-nil failure rolls the block back and drops the callbacks registered inside it. The returned
// error only reports what went wrong while closing the block, never failure itself.
func (c *Connection) ExitAtomic(ctx context.Context, block *AtomicBlock, failure error) error {
	if len(c.blocks) == 0 || c.blocks[len(c.blocks)-1] != block {
		return fmt.Errorf("[%s] %w", c.alias, ErrAtomicOrder)
	}

	c.blocks = c.blocks[:len(c.blocks)-1]
	c.logger().LogDebug(ctx, fmt.Sprintf("exiting atomic block %d at depth %d", block.ID, len(c.blocks)+1))

	if sid := block.savepoint; sid != "" {
		if failure != nil {
			return c.rollbackToSavepoint(ctx, sid)
		}

		if err := c.execute(ctx, "RELEASE SAVEPOINT "+sid); err != nil {
			if rbErr := c.rollbackToSavepoint(ctx, sid); rbErr != nil {
				return errors.Join(err, rbErr)
			}

			return err
		}
		c.forgetSavepoint(sid)

		return nil
	}

	if failure != nil {
		return c.rollback(ctx)
	}

	if err := c.execute(ctx, "COMMIT"); err != nil {
		if rbErr := c.rollback(ctx); rbErr != nil {
			c.logger().LogError(ctx, "error rolling back after a failed commit", rbErr)
		}

		return err
	}
	c.autocommit = true

	return c.RunAndClearCommitHooks(ctx)
}

// Savepoint creates an explicit savepoint and returns its id.
func (c *Connection) Savepoint(ctx context.Context) (string, error) {
	if c.autocommit {
		return "", fmt.Errorf("[%s] cannot create a savepoint: %w", c.alias, ErrNoTransaction)
	}

	sid := c.nextSavepoint()
	if err := c.execute(ctx, "SAVEPOINT "+sid); err != nil {
		return "", err
	}
	c.savepoints = append(c.savepoints, sid)

	return sid, nil
}

// SavepointCommit releases an explicit savepoint.
func (c *Connection) SavepointCommit(ctx context.Context, sid string) error {
	if c.autocommit {
		return fmt.Errorf("[%s] cannot release savepoint %s: %w", c.alias, sid, ErrNoTransaction)
	}

	if err := c.execute(ctx, "RELEASE SAVEPOINT "+sid); err != nil {
		return err
	}
	c.forgetSavepoint(sid)

	return nil
}

// SavepointRollback rolls back to an explicit savepoint and releases it.
func (c *Connection) SavepointRollback(ctx context.Context, sid string) error {
	if c.autocommit {
		return fmt.Errorf("[%s] cannot roll back savepoint %s: %w", c.alias, sid, ErrNoTransaction)
	}

	return c.rollbackToSavepoint(ctx, sid)
}

// SetAutocommit switches manual transaction management on (false) or off (true).
//
// Turning autocommit off begins a transaction that stays open until Commit, Rollback or SetAutocommit(true).
func (c *Connection) SetAutocommit(ctx context.Context, autocommit bool) error {
	if c.InAtomicBlock() {
		return fmt.Errorf("[%s] %w", c.alias, ErrInAtomicBlock)
	}

	if autocommit == c.autocommit {
		return nil
	}

	if autocommit {
		return c.Commit(ctx)
	}

	if err := c.ensureConnection(ctx); err != nil {
		return err
	}

	if err := c.execute(ctx, "BEGIN"); err != nil {
		return err
	}
	c.autocommit = false

	return nil
}

// Commit ends a manual transaction with COMMIT.
func (c *Connection) Commit(ctx context.Context) error {
	if c.InAtomicBlock() {
		return fmt.Errorf("[%s] %w", c.alias, ErrInAtomicBlock)
	}

	if c.autocommit {
		return nil
	}

	if err := c.execute(ctx, "COMMIT"); err != nil {
		if rbErr := c.rollback(ctx); rbErr != nil {
			c.logger().LogError(ctx, "error rolling back after a failed commit", rbErr)
		}

		return err
	}
	c.autocommit = true
	c.savepoints = nil

	return c.RunAndClearCommitHooks(ctx)
}

// Rollback ends a manual transaction with ROLLBACK.
func (c *Connection) Rollback(ctx context.Context) error {
	if c.InAtomicBlock() {
		return fmt.Errorf("[%s] %w", c.alias, ErrInAtomicBlock)
	}

	if c.autocommit {
		return nil
	}

	return c.rollback(ctx)
}

// ForceRollback rolls back every atomic block that was not opened by a test case, innermost first, and then any
// manual transaction. Test case blocks and what lies beneath them are left untouched.
func (c *Connection) ForceRollback(ctx context.Context) error {
	var errs []error

	for len(c.blocks) > 0 && !c.InnermostIsTestcase() {
		if err := c.ExitAtomic(ctx, c.blocks[len(c.blocks)-1], ErrForcedRollback); err != nil {
			errs = append(errs, err)
		}
	}

	if c.InManualTransaction() {
		if err := c.rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// OnCommit registers cb to run once the current transaction commits.
//
// Inside an atomic block the callback is queued and tagged with the active savepoints, so rolling back any of
// them drops it. In autocommit mode the callback runs immediately.
func (c *Connection) OnCommit(ctx context.Context, cb Callback) error {
	switch {
	case c.InAtomicBlock():
		c.onCommit = append(c.onCommit, pendingCallback{
			savepoints: slices.Clone(c.savepoints),
			callback:   cb,
		})

		return nil
	case !c.autocommit:
		return fmt.Errorf("[%s] %w", c.alias, ErrManualOnCommit)
	default:
		return c.runCallback(ctx, cb)
	}
}

// RunNow runs cb immediately, whatever the transaction state, as the after-commit queue would run it.
func (c *Connection) RunNow(ctx context.Context, cb Callback) error {
	return c.runCallback(ctx, cb)
}

// PendingCallbacks returns the queued after-commit callbacks, in registration order.
func (c *Connection) PendingCallbacks() []Callback {
	callbacks := make([]Callback, 0, len(c.onCommit))
	for _, p := range c.onCommit {
		callbacks = append(callbacks, p.callback)
	}

	return callbacks
}

// RunAndClearCommitHooks runs the queued callbacks in registration order and empties the queue.
//
// Callbacks registered while the batch runs are run as part of it. The first non-robust failure stops the batch:
// the remaining callbacks are discarded and the failure returned.
func (c *Connection) RunAndClearCommitHooks(ctx context.Context) error {
	for len(c.onCommit) > 0 {
		batch := c.onCommit
		c.onCommit = nil

		for _, p := range batch {
			if err := c.runCallback(ctx, p.callback); err != nil {
				c.onCommit = nil
				return err
			}
		}
	}

	return nil
}

// Close closes the physical session and resets the transaction state.
func (c *Connection) Close(ctx context.Context) error {
	c.blocks = nil
	c.savepoints = nil
	c.onCommit = nil
	c.autocommit = true

	if !c.driver.Connected() {
		return nil
	}

	if err := c.driver.Close(ctx); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error closing connection").OnConnection(c.alias)
	}

	return nil
}

func (c *Connection) runCallback(ctx context.Context, cb Callback) error {
	err := cb.call(ctx)
	if err == nil {
		return nil
	}

	if cb.Robust {
		c.logger().LogWarning(ctx, fmt.Sprintf("robust after-commit callback %s failed", cb.Name), err)
		return nil
	}

	return errorx.NewGeneralErrorWrapper(err, "after-commit callback %s failed on %s", cb.Name, c.alias)
}

func (c *Connection) rollback(ctx context.Context) error {
	err := c.execute(ctx, "ROLLBACK")

	c.autocommit = true
	c.savepoints = nil
	c.onCommit = nil

	return err
}

func (c *Connection) rollbackToSavepoint(ctx context.Context, sid string) error {
	c.forgetSavepoint(sid)
	c.onCommit = slices.DeleteFunc(c.onCommit, func(p pendingCallback) bool {
		return slices.Contains(p.savepoints, sid)
	})

	if err := c.execute(ctx, "ROLLBACK TO SAVEPOINT "+sid); err != nil {
		return err
	}

	return c.execute(ctx, "RELEASE SAVEPOINT "+sid)
}

// forgetSavepoint drops sid and every savepoint created after it, as the database does on release.
func (c *Connection) forgetSavepoint(sid string) {
	if i := slices.Index(c.savepoints, sid); i >= 0 {
		c.savepoints = c.savepoints[:i]
	}
}

func (c *Connection) nextSavepoint() string {
	c.savepointCounter++
	return savepointName(c.savepointPrefix, c.savepointCounter)
}

func (c *Connection) ensureConnection(ctx context.Context) error {
	if c.driver.Connected() {
		return nil
	}

	if err := c.driver.Connect(ctx); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error opening connection").OnConnection(c.alias)
	}

	return nil
}

func (c *Connection) execute(ctx context.Context, stmt string) error {
	c.logger().LogDebug(ctx, stmt)

	if err := c.driver.Execute(ctx, stmt); err != nil {
		c.logger().LogError(ctx, fmt.Sprintf("error executing %s", stmt), err)
		return errorx.NewDatabaseErrorWrapper(err, "error executing %s", stmt).OnConnection(c.alias)
	}

	return nil
}

func (c *Connection) logger() logx.Logger {
	logger := c.log
	if logger == nil {
		logger = logx.GetLogger()
	}

	return logger.With("connection", c.alias)
}
