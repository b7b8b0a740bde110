package dbx

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-subatomic/pkg/errorx"
)

// Callback is a function deferred until the transaction it was registered in commits.
//
// A robust callback has its failure (returned error or panic) logged and swallowed so that the callbacks queued
// after it still run. A non-robust failure stops the batch.
type Callback struct {
	Name   string
	Fn     func(ctx context.Context) error
	Robust bool
}

// NewCallback builds a Callback named after the symbol of fn.
func NewCallback(fn func(ctx context.Context) error, robust bool) Callback {
	return Callback{Name: FuncName(fn), Fn: fn, Robust: robust}
}

// String returns the callback name, marked when robust.
func (cb Callback) String() string {
	if cb.Robust {
		return cb.Name + " (robust)"
	}

	return cb.Name
}

type pendingCallback struct {
	savepoints []string
	callback   Callback
}

// call runs the callback. Panics of robust callbacks are turned into errors.
func (cb Callback) call(ctx context.Context) (err error) {
	if cb.Robust {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
	}

	if cb.Fn == nil {
		return errorx.NewGeneralError("after-commit callback %s has no function", cb.Name)
	}

	return cb.Fn(ctx)
}
