package subatomic

import (
	"fmt"
	"strings"

	"github.com/marcodd23/go-subatomic/pkg/dbx"
)

// MissingRequiredTransactionError is returned when an operation needs an open transaction and there is none.
type MissingRequiredTransactionError struct {
	Connection string
}

func (e *MissingRequiredTransactionError) Error() string {
	return fmt.Sprintf("a transaction is required on connection %q, but none is open", e.Connection)
}

// UnexpectedOpenTransactionError is returned by a durable function called while transactions are open.
// The function has not been run.
type UnexpectedOpenTransactionError struct {
	Connections []string
}

func (e *UnexpectedOpenTransactionError) Error() string {
	return fmt.Sprintf("durable function called with open transactions on: %s", strings.Join(e.Connections, ", "))
}

// UnexpectedDanglingTransactionError is returned when a durable function leaves transactions open.
// Those transactions have been rolled back. Cause holds the error returned by the function, if any.
type UnexpectedDanglingTransactionError struct {
	Connections []string
	Cause       error
}

func (e *UnexpectedDanglingTransactionError) Error() string {
	msg := fmt.Sprintf("durable function left transactions open on: %s; they have been rolled back",
		strings.Join(e.Connections, ", "))
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}

	return msg
}

func (e *UnexpectedDanglingTransactionError) Unwrap() error {
	return e.Cause
}

// UnhandledAfterCommitCallbacksError is returned when a transaction is opened while after-commit callbacks
// registered outside of it are still pending. No callback has been run.
type UnhandledAfterCommitCallbacksError struct {
	Connection string
	Callbacks  []dbx.Callback
}

func (e *UnhandledAfterCommitCallbacksError) Error() string {
	return fmt.Sprintf("unhandled after-commit callbacks on connection %q: [%s]", e.Connection, callbackNames(e.Callbacks))
}

// PendingTestcaseAfterCommitCallbacksError is returned when a transaction is opened while the test case wrapper
// transaction already holds pending after-commit callbacks.
type PendingTestcaseAfterCommitCallbacksError struct {
	Connection string
	Callbacks  []dbx.Callback
}

func (e *PendingTestcaseAfterCommitCallbacksError) Error() string {
	return fmt.Sprintf("the test case transaction on connection %q has pending after-commit callbacks: [%s]",
		e.Connection, callbackNames(e.Callbacks))
}

// NotADecoratorError is returned when a scope that can only be run is used to wrap a function.
type NotADecoratorError struct {
	Scope string
}

func (e *NotADecoratorError) Error() string {
	return fmt.Sprintf("%s cannot be used as a decorator", e.Scope)
}

func callbackNames(callbacks []dbx.Callback) string {
	names := make([]string, 0, len(callbacks))
	for _, cb := range callbacks {
		names = append(names, cb.String())
	}

	return strings.Join(names, ", ")
}
