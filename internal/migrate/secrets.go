package migrate

import (
	"fmt"
	"sort"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/specbook/pkg/models"
)

// SecretScanner flags discussion bodies that look like they carry leaked
// credentials, using the default gitleaks ruleset. Findings never block a
// migration; they ride along on the outcome for the run log, the lost report
// and the history store.
type SecretScanner struct {
	detector *detect.Detector
}

// NewSecretScanner builds a scanner over the default detection rules.
func NewSecretScanner() (*SecretScanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load secret detection rules: %w", err)
	}
	return &SecretScanner{detector: d}, nil
}

// ScanThread runs detection over every message body of a thread and returns
// the rule IDs that fired, sorted and deduplicated. A nil scanner reports
// nothing.
func (s *SecretScanner) ScanThread(th *models.DiscussionThread) []string {
	if s == nil || th == nil {
		return nil
	}
	hits := make(map[string]bool)
	for _, m := range th.Messages() {
		if m.Body == "" {
			continue
		}
		for _, finding := range s.detector.Detect(detect.Fragment{Raw: m.Body, FilePath: "discussion"}) {
			hits[finding.RuleID] = true
		}
	}
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, 0, len(hits))
	for id := range hits {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
