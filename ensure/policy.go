// Package ensure implements the chunked, throttled, partial-failure
// aware get-or-create / ensure-exists / upsert algorithms.
package ensure

// RetryMode selects how a chunk's write loop reacts to failures.
type RetryMode int

const (
	// RetryNone stops on the first failure and reports it; items not
	// yet written are dropped, not retried.
	RetryNone RetryMode = iota
	// RetryOnError strips the offending items and retries the rest.
	RetryOnError
	// RetryOnErrorKeepDuplicates additionally re-fetches items that
	// conflicted on external id, keeping the conflict errors visible
	// for caller inspection.
	RetryOnErrorKeepDuplicates
	// RetryOnFatal behaves like RetryOnError and additionally retries
	// fatal failures with a fixed backoff instead of giving up.
	RetryOnFatal
	// RetryOnFatalKeepDuplicates combines RetryOnFatal and
	// RetryOnErrorKeepDuplicates.
	RetryOnFatalKeepDuplicates
)

// String implements fmt.Stringer.
func (m RetryMode) String() string {
	switch m {
	case RetryOnError:
		return "onError"
	case RetryOnErrorKeepDuplicates:
		return "onErrorKeepDuplicates"
	case RetryOnFatal:
		return "onFatal"
	case RetryOnFatalKeepDuplicates:
		return "onFatalKeepDuplicates"
	default:
		return "none"
	}
}

// ParseRetryMode maps a config string to a RetryMode.
func ParseRetryMode(s string) (RetryMode, bool) {
	switch s {
	case "none", "":
		return RetryNone, true
	case "onError":
		return RetryOnError, true
	case "onErrorKeepDuplicates":
		return RetryOnErrorKeepDuplicates, true
	case "onFatal":
		return RetryOnFatal, true
	case "onFatalKeepDuplicates":
		return RetryOnFatalKeepDuplicates, true
	default:
		return RetryNone, false
	}
}

// retryRecoverable reports whether recoverable failures trigger
// clean-and-retry.
func (m RetryMode) retryRecoverable() bool {
	return m != RetryNone
}

// retryFatal reports whether fatal failures are retried with a fixed
// backoff instead of terminating the chunk.
func (m RetryMode) retryFatal() bool {
	return m == RetryOnFatal || m == RetryOnFatalKeepDuplicates
}

// keepDuplicates reports whether external-id conflicts trigger a
// re-fetch of the conflicting items.
func (m RetryMode) keepDuplicates() bool {
	return m == RetryOnErrorKeepDuplicates || m == RetryOnFatalKeepDuplicates
}
