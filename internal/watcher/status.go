package watcher

import (
	"bytes"
	"strings"
)

// Kind classifies a status payload.
type Kind int

const (
	// KindUnknown means no status has been seen (or the payload was empty).
	KindUnknown Kind = iota

	// KindOnline is the "online" token.
	KindOnline

	// KindOffline is the "offline" token.
	KindOffline

	// KindOther is any other token. It is recorded and logged but never fires.
	KindOther
)

// Payload tokens with defined semantics.
const (
	tokenOnline  = "online"
	tokenOffline = "offline"
	tokenUnknown = "unknown"
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindOnline:
		return "online"
	case KindOffline:
		return "offline"
	case KindOther:
		return "other"
	default:
		return "invalid"
	}
}

// Status is one normalised availability value.
type Status struct {
	Kind Kind

	// Text is the normalised payload. Empty for KindUnknown.
	Text string
}

// Unknown is the status before any message has been seen.
var Unknown = Status{Kind: KindUnknown}

// ParseStatus trims surrounding whitespace and lower-cases payload.
// Payloads are opaque tokens; only "online" and "offline" carry meaning.
func ParseStatus(payload []byte) Status {
	text := strings.ToLower(string(bytes.TrimSpace(payload)))

	switch text {
	case "":
		return Unknown
	case tokenOnline:
		return Status{Kind: KindOnline, Text: text}
	case tokenOffline:
		return Status{Kind: KindOffline, Text: text}
	default:
		return Status{Kind: KindOther, Text: text}
	}
}

// String returns the normalised token, or "unknown" when absent.
func (s Status) String() string {
	if s.Kind == KindUnknown {
		return tokenUnknown
	}
	return s.Text
}
