package server

import (
	"errors"
	"fmt"
)

var (
	ErrNoConnections = errors.New("no connected clients")
	ErrReadTimeout   = errors.New("read timed out")
)

// BindError is returned by Start when the listening socket cannot be set up.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
