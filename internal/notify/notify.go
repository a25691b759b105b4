// Package notify posts a summary of lost discussions to the GitLab merge
// request that triggered the regeneration, so reviewers learn what needs
// manual attention without opening the workbook.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/specbook/internal/migrate"
	"github.com/specbook/internal/retry"
	"github.com/specbook/pkg/models"
)

// DefaultMaxNoteLen bounds one note body. GitLab accepts far larger notes,
// but a wall of text buries the reviewer; long reports are split instead.
const DefaultMaxNoteLen = 16000

// Config selects the merge request that receives the lost-discussion note.
type Config struct {
	URL             string `koanf:"url"`
	Token           string `koanf:"token"`
	Project         string `koanf:"project"`
	MergeRequestIID int    `koanf:"merge_request_iid"`
}

// Enabled reports whether the configuration names a target to notify.
func (c Config) Enabled() bool {
	return c.Token != "" && c.Project != "" && c.MergeRequestIID > 0
}

// Notifier posts notes to one merge request, rate limited so a large report
// does not hammer the API.
type Notifier struct {
	client  *gitlab.Client
	limiter *rate.Limiter
	project string
	mrIID   int

	// MaxNoteLen bounds one note body. Zero means DefaultMaxNoteLen.
	MaxNoteLen int
	// Retry governs how transient posting errors are retried.
	Retry retry.Config
}

// New builds a notifier for the merge request cfg names.
func New(cfg Config) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("notification target is not configured")
	}
	opts := []gitlab.ClientOptionFunc{}
	if cfg.URL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.URL))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build GitLab client: %w", err)
	}
	return &Notifier{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		project: cfg.Project,
		mrIID:   cfg.MergeRequestIID,
		Retry:   retry.DefaultConfig(),
	}, nil
}

// PostLostDiscussions writes the lost threads of a run as merge request
// notes. Nothing is posted when every thread migrated.
func (n *Notifier) PostLostDiscussions(ctx context.Context, sum *migrate.Summary) error {
	notes := buildNotes(sum, n.maxNoteLen())
	if len(notes) == 0 {
		log.Debug().Msg("no lost discussions to report")
		return nil
	}
	for _, body := range notes {
		opts := &gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}
		err := retry.Do(ctx, n.Retry, func() error {
			if err := n.limiter.Wait(ctx); err != nil {
				return err
			}
			_, _, err := n.client.Notes.CreateMergeRequestNote(
				n.project, n.mrIID, opts, gitlab.WithContext(ctx))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to post lost discussion note: %w", err)
		}
	}
	log.Debug().Int("notes", len(notes)).Msg("posted lost discussion report")
	return nil
}

func (n *Notifier) maxNoteLen() int {
	if n.MaxNoteLen > 0 {
		return n.MaxNoteLen
	}
	return DefaultMaxNoteLen
}

// buildNotes renders the lost threads as markdown, split into bodies of at
// most maxLen runes. The first body carries the heading; later ones are
// marked as continuations.
func buildNotes(sum *migrate.Summary, maxLen int) []string {
	failures := sum.Failures()
	if len(failures) == 0 {
		return nil
	}

	header := fmt.Sprintf(
		"## %d review discussion(s) could not be migrated\n\nThey are also listed on the `%s` sheet of the regenerated workbook.\n\n",
		len(failures), migrate.LostSheetName)

	var notes []string
	var b strings.Builder
	b.WriteString(header)
	for _, out := range failures {
		line := lostLine(out)
		if b.Len()+len(line) > maxLen && b.Len() > len(header) {
			notes = append(notes, b.String())
			b.Reset()
			b.WriteString(header)
			b.WriteString("(continued)\n\n")
		}
		b.WriteString(line)
	}
	notes = append(notes, b.String())
	return notes
}

func lostLine(out *models.MigrationOutcome) string {
	root := out.Thread.Root
	var b strings.Builder
	fmt.Fprintf(&b, "- `%s!%s`: %s", root.Sheet, root.Ref, out.Failure)
	if root.Anchor != "" {
		fmt.Fprintf(&b, ", anchor `%s`", root.Anchor)
	}
	fmt.Fprintf(&b, ", %d message(s)", out.Thread.Size())
	if root.Author != "" {
		fmt.Fprintf(&b, " by %s", root.Author)
	}
	if len(out.SecretHints) > 0 {
		fmt.Fprintf(&b, ", possible secrets: %s", strings.Join(out.SecretHints, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
