package apiclient

import (
	"context"
	"time"
)

// RequestInfo identifies one logical request across its attempts.
type RequestInfo struct {
	ID      string
	Method  string
	URL     string
	Attempt int
}

// Hooks observe requests at the client boundary.
type Hooks interface {
	RequestStarted(ctx context.Context, info RequestInfo)
	RequestRetried(ctx context.Context, info RequestInfo)
	RequestFinished(ctx context.Context, info RequestInfo, status int, elapsed time.Duration, err error)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) RequestStarted(context.Context, RequestInfo)                             {}
func (NopHooks) RequestRetried(context.Context, RequestInfo)                             {}
func (NopHooks) RequestFinished(context.Context, RequestInfo, int, time.Duration, error) {}
