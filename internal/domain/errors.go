package domain

import (
	"errors"
	"fmt"
)

// ErrAdmissionRejected is the reason attached to a workflow handle that was not
// scheduled because the concurrency ceiling was reached.
var ErrAdmissionRejected = errors.New("trading workflow not scheduled: concurrency limit reached")

// ErrDuplicateSubmission marks a ledger rejection meaning the same extrinsic was
// already submitted.
var ErrDuplicateSubmission = errors.New("duplicate submission")

// SourceError wraps any ledger fault surfaced on the synchronous read path.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// CacheFault is a cache I/O or decode failure. It never fails a request.
type CacheFault struct {
	Op  string
	Key string
	Err error
}

func (e *CacheFault) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheFault) Unwrap() error { return e.Err }

// SignalFault is a social fetch or scoring failure. It degrades to neutral sentiment.
type SignalFault struct {
	Stage string
	Err   error
}

func (e *SignalFault) Error() string {
	return fmt.Sprintf("signal %s: %v", e.Stage, e.Err)
}

func (e *SignalFault) Unwrap() error { return e.Err }

// TradeFault is a stake/unstake failure. It is captured in the TradeOperation.
type TradeFault struct {
	Kind TradeKind
	Err  error
}

func (e *TradeFault) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *TradeFault) Unwrap() error { return e.Err }

// IsSourceError reports whether err carries a SourceError.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
