package migrate

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/specbook/internal/mapping"
	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// unknownParticipantName is the display name synthesized for authors the
// source participant directory does not cover.
const unknownParticipantName = "Unknown participant"

// Extraction is everything the engine pulls out of the source package before
// any placement begins: the unresolved threads in deterministic order and the
// participant directory they reference.
type Extraction struct {
	Threads      []*models.DiscussionThread
	Participants map[string]models.Participant
}

// Extract reads every unresolved discussion out of a source package. Threads
// whose root is marked done are dropped whole, replies included. Each message
// is annotated with the anchor covering its cell according to the source
// package's own anchor maps, so the resolver can re-locate it later without
// touching the source again. The source package is never mutated.
func Extract(src *xlsxpkg.Package) (*Extraction, error) {
	if src == nil {
		return nil, fmt.Errorf("no source package to extract from")
	}

	participants := make(map[string]models.Participant)
	for _, p := range src.Persons() {
		participants[p.ID] = models.Participant{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			UserID:      p.UserID,
			Provider:    p.ProviderID,
		}
	}

	ex := &Extraction{Participants: participants}
	for _, ws := range src.Sheets() {
		am, _ := src.AnchorMap(ws.Name)
		ex.Threads = append(ex.Threads, extractSheet(ws.Name, src.ThreadedComments(ws.Name), am, participants)...)
	}
	return ex, nil
}

// extractSheet groups one sheet's comments into threads in part order: roots
// first, then replies attached to them. A reply whose parent is missing from
// the part is promoted to a root of its own rather than dropped.
func extractSheet(sheet string, comments []xlsxpkg.ThreadedComment, am *mapping.Sheet, participants map[string]models.Participant) []*models.DiscussionThread {
	byRoot := make(map[string]*models.DiscussionThread)
	var threads []*models.DiscussionThread

	for _, tc := range comments {
		if !tc.IsRoot() {
			continue
		}
		th := &models.DiscussionThread{Root: toMessage(sheet, tc, am, participants)}
		byRoot[tc.ID] = th
		threads = append(threads, th)
	}
	for _, tc := range comments {
		if tc.IsRoot() {
			continue
		}
		msg := toMessage(sheet, tc, am, participants)
		th, ok := byRoot[tc.ParentID]
		if !ok {
			log.Debug().
				Str("sheet", sheet).
				Str("comment", tc.ID).
				Str("parent", tc.ParentID).
				Msg("promoting orphaned reply to thread root")
			msg.ParentID = ""
			th = &models.DiscussionThread{Root: msg}
			byRoot[tc.ID] = th
			threads = append(threads, th)
			continue
		}
		th.Replies = append(th.Replies, msg)
	}

	kept := threads[:0]
	for _, th := range threads {
		if th.Root.Done {
			log.Debug().
				Str("sheet", sheet).
				Str("root", th.Root.ID).
				Int("messages", th.Size()).
				Msg("skipping resolved thread")
			continue
		}
		// Replies go chronological; the stable sort keeps part order for
		// equal timestamps.
		sort.SliceStable(th.Replies, func(i, j int) bool {
			return th.Replies[i].CreatedAt.Before(th.Replies[j].CreatedAt)
		})
		kept = append(kept, th)
	}
	return kept
}

func toMessage(sheet string, tc xlsxpkg.ThreadedComment, am *mapping.Sheet, participants map[string]models.Participant) *models.DiscussionMessage {
	parentID := tc.ParentID
	if parentID == tc.ID {
		parentID = ""
	}
	author := unknownParticipantName
	if p, ok := participants[tc.PersonID]; ok && p.DisplayName != "" {
		author = p.DisplayName
	}
	anchorStr := ""
	if am != nil {
		anchorStr = am.AnchorAt(tc.Ref)
	}
	return &models.DiscussionMessage{
		ID:        tc.ID,
		ParentID:  parentID,
		PersonID:  tc.PersonID,
		Author:    author,
		CreatedAt: tc.Time,
		Body:      tc.Text,
		Done:      tc.Done,
		Sheet:     sheet,
		Ref:       tc.Ref,
		Anchor:    anchorStr,
	}
}
