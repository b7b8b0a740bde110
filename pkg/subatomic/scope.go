package subatomic

import (
	"context"
	"errors"
	"fmt"
)

// Func is the body of a scope.
type Func func(ctx context.Context) error

// Scope is a transaction-like scope that can be run around a function body.
//
// A body returning an error, or panicking, exits the scope exceptionally: the scope is rolled back and the error
// returned (the panic re-raised) once the exit is complete.
type Scope interface {
	Run(ctx context.Context, fn Func) error
}

// Decorator is a Scope that can also wrap a function, so that every call of the returned function runs inside
// a fresh acquisition of the scope.
type Decorator interface {
	Scope
	Wrap(fn Func) Func
}

// Decorate wraps fn with s, or returns a *NotADecoratorError when s cannot be used as a decorator.
func Decorate(s Scope, fn Func) (Func, error) {
	d, ok := s.(Decorator)
	if !ok {
		return nil, &NotADecoratorError{Scope: fmt.Sprint(s)}
	}

	return d.Wrap(fn), nil
}

// RunWithResult runs fn inside s and returns its result. The zero value is returned with any error.
func RunWithResult[T any](ctx context.Context, s Scope, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := s.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)

		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// exitFunc closes an acquired scope. bodyErr is nil on clean exit.
type exitFunc func(ctx context.Context, bodyErr error) error

// enterFunc acquires a scope and returns the context the body runs with.
type enterFunc func(ctx context.Context) (context.Context, exitFunc, error)

// scope holds the acquisition logic shared by Run and Wrap.
type scope struct {
	m     *Manager
	kind  string
	alias string
	enter enterFunc
}

func (s *scope) Run(ctx context.Context, fn Func) error {
	bodyCtx, exit, err := s.enter(ctx)
	if err != nil {
		return err
	}

	return s.runBody(bodyCtx, fn, exit)
}

func (s *scope) runBody(ctx context.Context, fn Func, exit exitFunc) (err error) {
	completed := false

	defer func() {
		if completed {
			return
		}

		// A nil recover means runtime.Goexit, which keeps unwinding on its own.
		r := recover()

		var failure error = errGoexit
		if r != nil {
			failure = &PanicError{Value: r}
		}

		if exitErr := exit(ctx, failure); exitErr != nil {
			s.m.logger.LogError(ctx, fmt.Sprintf("error exiting %s after %v", s, failure), exitErr)
		}

		if r != nil {
			panic(r)
		}
	}()

	bodyErr := fn(ctx)
	completed = true

	return exit(ctx, bodyErr)
}

func (s *scope) String() string {
	return fmt.Sprintf("%s(using=%s)", s.kind, s.alias)
}

// decorator is a scope usable as a Decorator.
type decorator struct {
	*scope
}

func (d decorator) Wrap(fn Func) Func {
	return func(ctx context.Context) error {
		return d.Run(ctx, fn)
	}
}

var errGoexit = errors.New("goroutine exited")

// PanicError is the failure a scope is exited with when its body panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// exitError merges the body error with the error raised while closing the scope.
func exitError(bodyErr, closeErr error) error {
	switch {
	case closeErr == nil:
		return bodyErr
	case bodyErr == nil:
		return closeErr
	default:
		return errors.Join(bodyErr, closeErr)
	}
}
