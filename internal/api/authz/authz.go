// Package authz carries the calling user through a request.
package authz

import (
	"context"
	"errors"

	"github.com/codr1/crease/internal/directory"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Caller is the user a request acts for.
type Caller struct {
	ID   string
	Name string
	Role string
}

type callerContextKey struct{}

func ContextWithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext retrieves the Caller stored in ctx.
// It returns nil if ctx is nil, if no caller is stored, or if the stored value has a different type.
func CallerFromContext(ctx context.Context) *Caller {
	if ctx == nil {
		return nil
	}
	caller, ok := ctx.Value(callerContextKey{}).(*Caller)
	if !ok {
		return nil
	}
	return caller
}

// CallerFromUser builds a Caller from a directory user.
func CallerFromUser(user directory.User) *Caller {
	return &Caller{ID: user.ID, Name: user.Name, Role: user.Role}
}

func IsAdmin(caller *Caller) bool {
	return caller != nil && caller.Role == directory.RoleAdmin
}

// RequireCaller returns the caller or ErrUnauthenticated.
func RequireCaller(ctx context.Context) (*Caller, error) {
	caller := CallerFromContext(ctx)
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	return caller, nil
}

// RequireAdmin returns the caller when it holds the admin role.
func RequireAdmin(ctx context.Context) (*Caller, error) {
	caller, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !IsAdmin(caller) {
		return nil, ErrForbidden
	}
	return caller, nil
}
