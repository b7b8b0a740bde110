package errorx

import (
	"fmt"
)

// GENERAL ERROR:

// GeneralError - General App Error.
type GeneralError struct {
	message string
	err     error
}

// NewGeneralError - GeneralError constructor.
func NewGeneralError(msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewGeneralErrorWrapper - GeneralError constructor for wrapper of another error.
func NewGeneralErrorWrapper(err error, msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *GeneralError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s # Error wrap: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

// Unwrap - return the wrapped error, if any.
func (ge *GeneralError) Unwrap() error {
	return ge.err
}

// DATABASE ERROR

// DatabaseError - error raised by a database driver or by the connection bookkeeping around it.
type DatabaseError struct {
	message    string
	connection string
	err        error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// OnConnection - tag the error with the alias of the connection it happened on.
func (de *DatabaseError) OnConnection(alias string) *DatabaseError {
	de.connection = alias
	return de
}

// Connection - alias of the connection the error happened on, empty if unknown.
func (de *DatabaseError) Connection() string {
	return de.connection
}

// Error - return the error string.
func (de *DatabaseError) Error() string {
	msg := de.message
	if de.connection != "" {
		msg = fmt.Sprintf("[%s] %s", de.connection, de.message)
	}

	if de.err != nil {
		return fmt.Errorf("%s: %w", msg, de.err).Error()
	}

	return msg
}

// Unwrap - return the wrapped error, if any.
func (de *DatabaseError) Unwrap() error {
	return de.err
}
