package persistence

import "errors"

// ErrOrderNotFound indicates no order exists for the given identifier.
var ErrOrderNotFound = errors.New("order not found")
