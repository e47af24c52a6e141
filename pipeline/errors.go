package pipeline

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTypeMismatch reports a value or connection whose type does not
	// match the declared port type. Accessors panic with it; Connect and
	// SetInput return it.
	ErrTypeMismatch = errors.New("pipeline: type mismatch")
	// ErrUnknownPort reports a port name that was never declared.
	ErrUnknownPort = errors.New("pipeline: unknown port")
	// ErrDuplicatePort reports a name declared twice where names must be unique.
	ErrDuplicatePort = errors.New("pipeline: duplicate port")
	// ErrAlreadySet is returned by Promise.Set on a resolved cell.
	ErrAlreadySet = errors.New("pipeline: promise already set")
	// ErrFlushed is returned by TryGet when the cell was flushed without a value.
	ErrFlushed = errors.New("pipeline: flushed without a value")
)

func typeMismatch(port string, want, got reflect.Type) error {
	return fmt.Errorf("%w: port %q wants %v, got %v", ErrTypeMismatch, port, want, got)
}

func unknownPort(port string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPort, port)
}
