package collector

import (
	"context"
	"errors"
	"fmt"
	"net"

	"BullionWatch/internal/metrics"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindUnavailable Kind = iota // network, HTTP or timeout failure
	KindRateLimited             // provider call-volume cap
	KindParse                   // malformed payload
	KindNotAtTier               // symbol or series not offered on this plan
)

var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrRateLimited = errors.New("rate limited")
	ErrParse       = errors.New("malformed response")
	ErrNotAtTier   = errors.New("not available at this tier")
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindParse:
		return "parse"
	case KindNotAtTier:
		return "not_at_tier"
	default:
		return "unavailable"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindParse:
		return ErrParse
	case KindNotAtTier:
		return ErrNotAtTier
	default:
		return ErrUnavailable
	}
}

// FetchError is the typed failure every provider client returns.
type FetchError struct {
	Provider string
	Op       string
	Kind     Kind
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func fetchErr(provider, op string, kind Kind, err error) *FetchError {
	metrics.ProviderRequests.WithLabelValues(provider, opLabel(op), kind.String()).Inc()
	return &FetchError{Provider: provider, Op: op, Kind: kind, Err: err}
}

func fetchOK(provider, op string) {
	metrics.ProviderRequests.WithLabelValues(provider, opLabel(op), "ok").Inc()
}

// transportErr maps a failed round trip. Context cancellation and timeouts are
// plain unavailability.
func transportErr(provider, op string, err error) *FetchError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fetchErr(provider, op, KindUnavailable, fmt.Errorf("timeout: %w", err))
	}
	return fetchErr(provider, op, KindUnavailable, err)
}

// IsExpected reports failures that are a normal part of running against
// capped or plan-limited providers.
func IsExpected(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNotAtTier)
}

// KindOf extracts the failure kind; non-FetchErrors are KindUnavailable.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnavailable
}

// opLabel keeps the operation verb for metric labels, dropping any symbol suffix.
func opLabel(op string) string {
	for i := 0; i < len(op); i++ {
		if op[i] == ' ' {
			return op[:i]
		}
	}
	return op
}
