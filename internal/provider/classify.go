package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/shaneholloman/automaker/internal/domain"
)

// Classification is an advisory reading of a failure. Callers may use
// it to decide whether to re-prompt for login or retry; it never
// changes what was emitted on the stream.
type Classification struct {
	Kind             domain.ErrorKind
	Message          string
	IsCancellation   bool
	IsAuthentication bool
}

// authPhrases are matched case-insensitively as substrings. The list is
// fixed: backend CLIs phrase credential failures in prose, not codes.
var authPhrases = []string{
	"api key",
	"apikey",
	"authentication",
	"unauthorized",
	"credential",
	"not logged in",
	"login required",
	"please run /login",
	"401",
}

// Classify maps a failure cause onto the canonical error taxonomy.
func Classify(cause error) Classification {
	if cause == nil {
		return Classification{Kind: domain.ErrorKindUnknown, Message: "unknown error"}
	}
	if errors.Is(cause, context.Canceled) {
		return Classification{
			Kind:           domain.ErrorKindCancellation,
			Message:        cause.Error(),
			IsCancellation: true,
		}
	}
	msg := cause.Error()
	if msg == "" {
		return Classification{Kind: domain.ErrorKindUnknown, Message: "unknown error"}
	}
	if matchesAuthPhrase(msg) {
		return Classification{
			Kind:             domain.ErrorKindAuthentication,
			Message:          msg,
			IsAuthentication: true,
		}
	}
	return Classification{Kind: domain.ErrorKindExecution, Message: msg}
}

// ClassifyMessage classifies prose that did not arrive as an error
// value, such as a failure record decoded from a backend stream.
func ClassifyMessage(msg string) Classification {
	if strings.TrimSpace(msg) == "" {
		return Classification{Kind: domain.ErrorKindUnknown, Message: "unknown error"}
	}
	if matchesAuthPhrase(msg) {
		return Classification{
			Kind:             domain.ErrorKindAuthentication,
			Message:          msg,
			IsAuthentication: true,
		}
	}
	return Classification{Kind: domain.ErrorKindExecution, Message: msg}
}

func matchesAuthPhrase(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range authPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
