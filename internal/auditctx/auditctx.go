// Package auditctx carries the calling profile's request metadata from the
// HTTP layer down to the services that record team and profile activity.
package auditctx

import "context"

// Caller identifies the profile behind a request and where it came from.
type Caller struct {
	ProfileID string
	Username  string
	IPAddress string
	UserAgent string
}

type callerKey struct{}

// WithCaller returns a context carrying caller. A nil ctx is treated as
// context.Background.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

// Renamed replaces the caller's username, leaving other fields intact. It is
// a no-op when ctx carries no caller.
func Renamed(ctx context.Context, username string) context.Context {
	caller, ok := CallerFrom(ctx)
	if !ok || username == "" {
		return ctx
	}
	caller.Username = username
	return WithCaller(ctx, caller)
}
