package voice

import (
	"errors"
	"strings"
)

var (
	// ErrNoPendingDraw reports a resolve with no outstanding request.
	ErrNoPendingDraw = errors.New("no draw request is pending")
	// ErrNoActiveSpread reports a card selection before a batch draw began.
	ErrNoActiveSpread = errors.New("no spread is being drawn")
	// ErrSessionClosed is the rejection delivered to an in-flight draw when
	// the session tears down.
	ErrSessionClosed = errors.New("voice session closed")
	// ErrNotConnected rejects operations before Start or after Close.
	ErrNotConnected = errors.New("voice session not connected")
)

// FailureKind categorizes a voice connection failure.
type FailureKind string

const (
	FailureServiceUnavailable FailureKind = "service_unavailable"
	FailureTransport          FailureKind = "transport"
	FailurePermission         FailureKind = "permission"
	FailureUnknown            FailureKind = "unknown"
)

const textFallbackHint = " You can continue your reading in the text chat."

// ClassifyConnectionError maps a connection failure to a category with a
// tailored recovery suggestion. Every suggestion offers the text surface as
// a fallback.
func ClassifyConnectionError(err error) (FailureKind, string) {
	if err == nil {
		return FailureUnknown, "The voice session ended unexpectedly." + textFallbackHint
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "permission", "api key", "credential"):
		return FailurePermission, "The voice service rejected the session credentials. Check the configured key and try again." + textFallbackHint
	case containsAny(msg, "503", "502", "unavailable", "overloaded", "rate limit", "429"):
		return FailureServiceUnavailable, "The voice service is unavailable right now. Try again in a moment." + textFallbackHint
	case containsAny(msg, "refused", "reset", "timeout", "timed out", "broken pipe", "eof", "no such host", "network"):
		return FailureTransport, "The connection to the voice service dropped. Check your network and reconnect." + textFallbackHint
	default:
		return FailureUnknown, "The voice session ended unexpectedly." + textFallbackHint
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
