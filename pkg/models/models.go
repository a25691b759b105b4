package models

import (
	"time"
)

// DiscussionMessage is one review comment extracted from a workbook package.
// A message with ParentID == "" (or ParentID == ID) is a thread root; every
// other message is a reply whose ParentID names its root.
type DiscussionMessage struct {
	ID        string    // package-local identifier (braced GUID)
	ParentID  string    // root identifier for replies, empty for roots
	PersonID  string    // participant-directory identifier of the author
	Author    string    // display name resolved from the participant directory
	CreatedAt time.Time // original creation timestamp, preserved across migration
	Body      string
	Done      bool // resolved flag; resolved threads are excluded from migration

	// Originating placement in the source workbook.
	Sheet string
	Ref   string // A1-style cell reference, e.g. "C28"

	// Anchor is the semantic address of the originating cell, when the source
	// workbook's anchor map covers it. Empty when the cell was never mapped.
	Anchor string

	// Override destination, set by the migration strategy chain when the
	// message cannot keep its original placement. Both empty until placement.
	OverrideSheet string
	OverrideRef   string
}

// IsRoot reports whether the message starts a thread.
func (m *DiscussionMessage) IsRoot() bool {
	return m.ParentID == "" || m.ParentID == m.ID
}

// Destination returns the placement the message migrates to: the override
// destination when one was assigned, otherwise the original placement.
func (m *DiscussionMessage) Destination() (string, string) {
	if m.OverrideSheet != "" && m.OverrideRef != "" {
		return m.OverrideSheet, m.OverrideRef
	}
	return m.Sheet, m.Ref
}

// DiscussionThread is a root message plus its replies in chronological order.
// Placement is decided once, on the root, and propagated verbatim to every
// reply; replies never acquire an independent destination.
type DiscussionThread struct {
	Root    *DiscussionMessage
	Replies []*DiscussionMessage
}

// Messages returns the root followed by its replies.
func (t *DiscussionThread) Messages() []*DiscussionMessage {
	out := make([]*DiscussionMessage, 0, len(t.Replies)+1)
	out = append(out, t.Root)
	out = append(out, t.Replies...)
	return out
}

// Size returns the number of messages in the thread, root included.
func (t *DiscussionThread) Size() int {
	return len(t.Replies) + 1
}

// Participant is one entry of the workbook-scoped participant directory.
type Participant struct {
	ID          string // braced GUID referenced by DiscussionMessage.PersonID
	DisplayName string
	UserID      string
	Provider    string // identity provider hint, "None" when unknown
}

// Strategy identifies which placement policy migrated a thread.
type Strategy string

const (
	// StrategyAnchored placed the thread at the cell its anchor resolves to in
	// the regenerated workbook.
	StrategyAnchored Strategy = "anchored"
	// StrategySameSheet kept the thread on its original sheet, relocated to
	// the closest heading row at or above its original row.
	StrategySameSheet Strategy = "same-sheet"
	// StrategyOverflow redirected the thread to the overflow sheet.
	StrategyOverflow Strategy = "overflow"
)

// FailureReason is the typed per-thread failure taxonomy. A thread carries at
// most one reason; an empty reason means the thread migrated.
type FailureReason string

const (
	// FailureNone marks a successfully migrated thread.
	FailureNone FailureReason = ""
	// FailureNoAnchorUnmigratable: no anchor and neither fallback could place
	// the thread. Only reachable when the overflow catch-all is unavailable.
	FailureNoAnchorUnmigratable FailureReason = "no-anchor-and-unmigratable"
	// FailureAnchorNotFound: the thread carries an anchor that resolves to
	// nothing in the destination mapping.
	FailureAnchorNotFound FailureReason = "anchor-not-found-in-destination"
	// FailureSheetMissing: the resolved mapping names a sheet absent from the
	// destination workbook.
	FailureSheetMissing FailureReason = "destination-sheet-missing"
	// FailureUnexpected: an I/O or structural parsing error while handling
	// the thread.
	FailureUnexpected FailureReason = "unexpected-error"
)

// MigrationOutcome is the per-thread result of a migration run.
type MigrationOutcome struct {
	Thread *DiscussionThread

	// Destination, empty on failure.
	Sheet string
	Ref   string

	Strategy Strategy
	Failure  FailureReason

	// Err carries the underlying error for FailureUnexpected outcomes.
	Err error

	// SecretHints lists detection rule IDs that fired on any message body of
	// the thread. Findings never block migration; they are surfaced in the
	// lost-discussions report and the run history.
	SecretHints []string
}

// Migrated reports whether the thread was placed in the destination workbook.
func (o *MigrationOutcome) Migrated() bool {
	return o.Failure == FailureNone
}
