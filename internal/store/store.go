// Package store owns the per-user conversation records and enforces their
// lifecycle: begin, advance, complete, expire.
//
// Records live in memory only; an untouched record is treated as absent once
// it is older than the configured inactivity timeout.
package store

import (
	"errors"
	"time"
)

// DefaultTimeout is the inactivity threshold after which a conversation
// record is treated as absent.
const DefaultTimeout = 30 * time.Minute

// Error variables for better error handling and testability
var (
	// ErrUnknownServiceCode indicates a service code that is not in the catalog.
	ErrUnknownServiceCode = errors.New("unknown service code")
	// ErrNoActiveConversation indicates no in-progress record exists for the user.
	ErrNoActiveConversation = errors.New("no active conversation for user")
)

// ConversationRecord tracks one user's progress through a service flow.
// Values returned by the store are snapshots; mutating them does not affect
// the stored record.
type ConversationRecord struct {
	UserID       string            `json:"user_id"`
	ServiceCode  string            `json:"service_code"`
	CurrentStep  int               `json:"current_step"`
	Answers      map[string]string `json:"answers"`
	LastActivity time.Time         `json:"last_activity"`
}

// ConversationStore holds the userID -> ConversationRecord mapping.
// Implementations must make every check-then-set on a single user's record
// atomic with respect to concurrent calls for the same user.
type ConversationStore interface {
	// Begin creates a fresh record for userID, unconditionally replacing any
	// existing one (explicit abandon). Fails with ErrUnknownServiceCode if the
	// catalog does not know serviceCode.
	Begin(userID, serviceCode string) (ConversationRecord, error)

	// Get returns the user's record if present and not expired. An expired
	// record is removed as a side effect and reported as absent.
	Get(userID string) (ConversationRecord, bool)

	// RecordAnswer stores text under the field for the record's current step.
	// On the final step it marks the record complete and returns complete=true;
	// exactly one concurrent caller observes completion. Otherwise it advances
	// the step and refreshes the activity timestamp. Fails with
	// ErrNoActiveConversation if the user has no live record, and with
	// ErrUnknownServiceCode if the record references a service the catalog no
	// longer knows (the record is removed in that case).
	RecordAnswer(userID, text string) (record ConversationRecord, complete bool, err error)

	// End removes the user's record. Calling End for an absent user is a no-op.
	End(userID string)

	// ActiveCount returns the number of non-expired, in-progress records.
	ActiveCount() int

	// Clear removes every record and returns how many were removed.
	Clear() int
}
