// Package counter hands out a strictly increasing alias sequence shared by
// every server process. Each backend increments and reads the value in a
// single atomic storage operation; nothing is cached or pre-allocated in
// process.
package counter

import (
	"context"
	"errors"
)

// DefaultName identifies the alias sequence.
const DefaultName = "url_alias"

// ErrUnavailable wraps storage failures. Callers may retry.
var ErrUnavailable = errors.New("alias counter unavailable")

// Counter returns the next value of a shared sequence.
type Counter interface {
	Next(ctx context.Context) (uint64, error)
}
