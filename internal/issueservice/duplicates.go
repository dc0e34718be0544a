package issueservice

import (
	"context"

	"tasklanes/internal/issuestorage"
)

// MergedIssue reports one issue that had more than one stored copy.
type MergedIssue struct {
	ID      string                        `json:"id"`
	Copies  int                           `json:"copies"`
	Changes []issuestorage.PropertyChange `json:"changes,omitempty"`
}

// DuplicateReport is the outcome of ResolveDuplicates.
type DuplicateReport struct {
	Merged []MergedIssue `json:"merged"`
	// ShardsFolded counts secondary shards folded into the primary one.
	ShardsFolded int `json:"shards_folded"`
}

// ResolveDuplicates merges every issue stored more than once, writes the
// merged collection back as a single shard, and records each field the merge
// had to reconcile. With dryRun nothing is written.
func (s *Service) ResolveDuplicates(ctx context.Context, dryRun bool) (DuplicateReport, error) {
	var report DuplicateReport

	if sharded, ok := s.store.(issuestorage.ShardedStore); ok {
		shards, err := sharded.Shards(ctx)
		if err != nil {
			return report, err
		}
		report.ShardsFolded = len(shards)
	}

	groups, err := s.load(ctx)
	if err != nil {
		return report, err
	}
	issues := make([]*issuestorage.Issue, 0, len(groups))
	for _, g := range groups {
		issues = append(issues, g.merged)
		if g.copies > 1 {
			report.Merged = append(report.Merged, MergedIssue{
				ID:      g.id,
				Copies:  g.copies,
				Changes: g.changes,
			})
		}
	}

	if dryRun || (len(report.Merged) == 0 && report.ShardsFolded == 0) {
		return report, nil
	}

	if err := s.store.SaveAll(ctx, issues); err != nil {
		return report, err
	}
	for _, m := range report.Merged {
		if err := s.record(ctx, m.ID, m.Changes); err != nil {
			return report, err
		}
	}
	s.log.Info("resolved duplicates", "issues", len(report.Merged), "shards", report.ShardsFolded)
	return report, nil
}
