package linking

import (
	"context"
	"errors"

	"linkpay/pkg/config"
)

var ErrCanceled = errors.New("account linking canceled")

// Linker runs the external account-linking flow for a session key and returns
// the linked customer identifier.
type Linker interface {
	Link(ctx context.Context, sessionKey string, env config.Environment) (string, error)
}

// Func adapts a function to Linker.
type Func func(ctx context.Context, sessionKey string, env config.Environment) (string, error)

func (f Func) Link(ctx context.Context, sessionKey string, env config.Environment) (string, error) {
	return f(ctx, sessionKey, env)
}

// Error is a failure reported by the linking flow itself.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Static skips the interactive flow and returns a fixed customer id.
type Static struct {
	CustomerID string
}

func (s Static) Link(ctx context.Context, _ string, _ config.Environment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.CustomerID, nil
}
