// Package classify maps provider error codes onto a user-facing verdict and
// a retry decision. Unknown codes are treated as permanent so a brand-new
// provider code can never trigger a retry storm.
package classify

import (
	"errors"
	"fmt"

	"finsync/internal/domain/provider"
)

// Classification is the verdict for one provider error.
type Classification struct {
	UserMessage       string
	SuggestedAction   string
	RequiresReconnect bool
	// IsTransient marks errors worth retrying with backoff. Everything
	// else fails fast.
	IsTransient bool
}

var classifications = map[string]Classification{
	// Authentication class: the stored credential no longer works.
	// Retrying cannot help; the user has to reconnect.
	"ITEM_LOGIN_REQUIRED": {
		UserMessage:       "Your bank connection has expired. Please reconnect your account.",
		SuggestedAction:   "reconnect",
		RequiresReconnect: true,
	},
	"INVALID_CREDENTIALS": {
		UserMessage:       "Your bank credentials are no longer valid. Please reconnect your account.",
		SuggestedAction:   "reconnect",
		RequiresReconnect: true,
	},
	"INVALID_MFA": {
		UserMessage:       "Additional verification is required by your bank. Please reconnect your account.",
		SuggestedAction:   "reconnect",
		RequiresReconnect: true,
	},
	"ITEM_LOCKED": {
		UserMessage:       "Your bank account is locked. Please unlock it with your bank, then reconnect.",
		SuggestedAction:   "reconnect",
		RequiresReconnect: true,
	},
	"ACCESS_NOT_GRANTED": {
		UserMessage:       "Access to your bank account was not granted. Please reconnect and approve access.",
		SuggestedAction:   "reconnect",
		RequiresReconnect: true,
	},

	// Availability class: the institution or provider is struggling.
	// These resolve on their own, so they are retried with backoff.
	"INSTITUTION_DOWN": {
		UserMessage:     "Your bank is temporarily unavailable. We'll retry automatically.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},
	"INSTITUTION_NOT_RESPONDING": {
		UserMessage:     "Your bank is not responding right now. We'll retry automatically.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},
	"RATE_LIMIT_EXCEEDED": {
		UserMessage:     "Too many requests to your bank. We'll retry shortly.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},
	"INTERNAL_SERVER_ERROR": {
		UserMessage:     "A temporary problem occurred while syncing. We'll retry automatically.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},
	"PLANNED_MAINTENANCE": {
		UserMessage:     "Your bank is under maintenance. We'll retry once it's back.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},

	// Raised internally when a single run hits the page cap. The cursor
	// is already persisted, so the next run simply continues the walk.
	"PAGINATION_LIMIT": {
		UserMessage:     "There are many transactions to sync. We'll continue on the next sync.",
		SuggestedAction: "wait",
		IsTransient:     true,
	},
}

// Code classifies a raw provider error code. Unknown codes are permanent
// and surface the code itself in the message.
func Code(code string) Classification {
	if c, ok := classifications[code]; ok {
		return c
	}
	return Classification{
		UserMessage:     fmt.Sprintf("An unexpected error occurred (%s). Please try again later.", code),
		SuggestedAction: "contact_support",
	}
}

// Err classifies an error value. Non-provider errors (network failures,
// store errors, context cancellation) are permanent from the classifier's
// point of view; the retry engine handles its own timeouts.
func Err(err error) Classification {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return Code(perr.Code)
	}
	return Classification{
		UserMessage:     "An unexpected error occurred while syncing. Please try again later.",
		SuggestedAction: "contact_support",
	}
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	return Err(err).IsTransient
}
