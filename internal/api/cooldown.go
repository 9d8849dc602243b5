package api

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Error codes the backend uses to signal resend throttling.
const (
	CodeResendCooldown      = "RESEND_COOLDOWN"
	CodeMaxAttemptsExceeded = "MAX_ATTEMPTS_EXCEEDED"
)

// Throttle describes why a resend was refused.
type Throttle struct {
	// RetryAfter is the remaining cooldown, zero when none applies.
	RetryAfter time.Duration
	// MaxAttempts is set when no further resends will be accepted.
	MaxAttempts bool
}

// Throttled reports whether the refusal was a throttle at all.
func (t Throttle) Throttled() bool {
	return t.RetryAfter > 0 || t.MaxAttempts
}

var firstInteger = regexp.MustCompile(`\d+`)

// ClassifyThrottle extracts resend throttling from a backend error. The
// structured code and retry-after fields win. The message is only parsed
// when the backend sent neither.
func ClassifyThrottle(err error) Throttle {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Throttle{}
	}

	switch apiErr.Code {
	case CodeMaxAttemptsExceeded:
		return Throttle{MaxAttempts: true}
	case CodeResendCooldown:
		return Throttle{RetryAfter: apiErr.RetryAfter}
	}
	if apiErr.Code != "" || apiErr.RetryAfter > 0 {
		return Throttle{RetryAfter: apiErr.RetryAfter}
	}

	return parseThrottleMessage(apiErr.Message)
}

// parseThrottleMessage reads the prose form older backends send, for example
// "Please wait 87 seconds before requesting a new code".
func parseThrottleMessage(msg string) Throttle {
	if strings.Contains(msg, "exceeded") || strings.Contains(msg, "Maximum") {
		return Throttle{MaxAttempts: true}
	}
	if strings.Contains(msg, "wait") {
		if m := firstInteger.FindString(msg); m != "" {
			if secs, err := strconv.Atoi(m); err == nil && secs > 0 {
				return Throttle{RetryAfter: time.Duration(secs) * time.Second}
			}
		}
	}
	return Throttle{}
}
