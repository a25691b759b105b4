package migrate

import (
	"strings"

	"github.com/google/uuid"

	"github.com/specbook/pkg/models"
)

// NewCommentID mints a fresh identifier in the braced uppercase form the
// comment stores use.
func NewCommentID() string {
	return "{" + strings.ToUpper(uuid.NewString()) + "}"
}

// RebuiltMessage pairs one migrated message with the fresh identifiers it
// carries in the destination package. NewParent is empty for thread roots.
type RebuiltMessage struct {
	Message   *models.DiscussionMessage
	NewID     string
	NewParent string
}

// RebuildThreads orders the messages of every placed outcome so each root
// precedes its replies, mints fresh identifiers, and rewrites parent
// references through a translation table built as messages are processed.
// Author, timestamp and body stay untouched. Threads that failed placement
// are excluded whole; a reply whose parent somehow escaped the table is
// re-parented to its thread root rather than emitted dangling.
func RebuildThreads(outcomes []*models.MigrationOutcome, newID func() string) []RebuiltMessage {
	var rebuilt []RebuiltMessage
	for _, out := range outcomes {
		if !out.Migrated() {
			continue
		}
		translation := make(map[string]string, out.Thread.Size())
		rootID := newID()
		translation[out.Thread.Root.ID] = rootID
		rebuilt = append(rebuilt, RebuiltMessage{Message: out.Thread.Root, NewID: rootID})
		for _, reply := range out.Thread.Replies {
			id := newID()
			translation[reply.ID] = id
			parent := translation[reply.ParentID]
			if parent != rootID {
				// The destination store is flat: every reply references its
				// thread root, never an intermediate message.
				parent = rootID
			}
			rebuilt = append(rebuilt, RebuiltMessage{Message: reply, NewID: id, NewParent: parent})
		}
	}
	return rebuilt
}
