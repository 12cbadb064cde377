package models

import (
	"errors"
	"fmt"
)

// Domain error kinds surfaced by the engine. Services return these wrapped
// with %w; callers branch with errors.Is.
var (
	ErrNotRegistered      = errors.New("user is not registered")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrOnCooldown         = errors.New("action is on cooldown")
	ErrDuplicateVote      = errors.New("already voted on this report")
	ErrReportClosed       = errors.New("report is closed")
	ErrNoSlotAvailable    = errors.New("no review slot available")
	ErrAdapterUnreachable = errors.New("chat adapter unreachable")
	ErrStoreTransient     = errors.New("transient store failure")
)

// ErrQuotaExceeded matches any QuotaError via errors.Is.
var ErrQuotaExceeded = errors.New("report quota exceeded")

// QuotaError rejects a report submission that would exceed the guild's open
// report quota. PremiumWouldAllow hints whether the premium limits would
// have accepted it.
type QuotaError struct {
	GuildID           int64
	Status            ReportStatus
	Count             int
	Limit             int
	PremiumWouldAllow bool
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("guild %d quota exceeded: %d/%d reports in %s", e.GuildID, e.Count, e.Limit, e.Status)
}

// Is makes errors.Is(err, ErrQuotaExceeded) match QuotaError values.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
