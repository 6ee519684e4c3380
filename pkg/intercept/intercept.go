// Package intercept wraps named operations with cross-cutting behavior.
// An Interceptor may run code before and after the inner handler or
// short-circuit it entirely.
package intercept

import (
	"context"

	"tablepos/pkg/apperr"
)

var (
	ErrForbidden    = apperr.New(apperr.KindForbidden, "forbidden")
	ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "unauthorized")
)

// Actor is the authenticated staff member behind a request.
type Actor struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// HasRole reports whether a holds role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Request is one invocation of a named operation.
type Request struct {
	ID        string
	Operation string
	Actor     Actor
	Payload   any
}

// Handler performs an operation.
type Handler func(ctx context.Context, req Request) (any, error)

// Interceptor decorates a Handler.
type Interceptor func(next Handler) Handler

// Chain wraps h so that ics[0] runs first and h runs last.
func Chain(h Handler, ics ...Interceptor) Handler {
	for i := len(ics) - 1; i >= 0; i-- {
		h = ics[i](h)
	}
	return h
}

// Outcome is the boundary result of an operation.
type Outcome struct {
	OK      bool        `json:"ok"`
	Result  any         `json:"result,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Run invokes h and folds its result into an Outcome.
func Run(ctx context.Context, h Handler, req Request) Outcome {
	res, err := h(ctx, req)
	if err != nil {
		return Outcome{Kind: apperr.KindOf(err), Message: err.Error()}
	}
	return Outcome{OK: true, Result: res}
}
