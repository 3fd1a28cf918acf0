package ladder

import (
	"errors"
	"fmt"
)

// ErrUnresolvedTier means neither the provider tier name nor the band range
// lookup identified the current tier. Callers must surface this instead of
// defaulting to tier 1.
var ErrUnresolvedTier = errors.New("ladder: unresolved tier")

// ErrInvalidUsage means the cumulative usage input was negative or the tier
// table was malformed.
var ErrInvalidUsage = errors.New("ladder: invalid usage")

// UpstreamError is a transport/HTTP-level failure from a provider client.
// It always propagates; it never triggers a fallback strategy.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProviderError is a provider-level failure: the request reached the
// provider but the provider reported an error. For the electricity
// month-detail call this is the one trigger for the fallback estimator.
type ProviderError struct {
	Op   string
	Code string
	Msg  string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider %s: [%s] %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("provider %s: %s", e.Op, e.Msg)
}
