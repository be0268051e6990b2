package store

import "errors"

// ErrClosed is returned by any Store operation after Close.
var ErrClosed = errors.New("store: closed")

// ErrInvalidID is returned when an id argument is not a well-formed UUID.
var ErrInvalidID = errors.New("store: invalid id")
