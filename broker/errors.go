package broker

import (
	"errors"
	"fmt"
)

// ErrInstrumentNotFound reports a pricing response that did not include the
// requested pair. That is an unexpected broker answer, so it is wrapped in an
// UpstreamError by the gateway.
var ErrInstrumentNotFound = errors.New("instrument not found in pricing response")

// UpstreamError is any broker-side failure: a non-2xx response, a network
// error, a timeout, or a response missing required fields. Callers must not
// retry automatically — a market order may have partially executed, and the
// position state has to be re-queried before acting again.
type UpstreamError struct {
	Op     string // e.g. "get account", "submit order"
	Status int    // HTTP status, 0 for transport errors
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("oanda %s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("oanda %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
