package services

import (
	"context"

	"github.com/vigild/vigil/pkg/experience"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/repository"
)

// ReviewerStats is the profile view returned by the stats command.
type ReviewerStats struct {
	Reviewer     *models.Reviewer
	Rank         string
	RankXP       int
	RankXPNeeded int
	RankProgress float64
}

// StatsService answers profile queries.
type StatsService struct {
	store *repository.Store
}

// NewStatsService creates a new stats service
func NewStatsService(store *repository.Store) *StatsService {
	return &StatsService{store: store}
}

// Stats returns the reviewer's profile plus their XP rank and progress.
func (s *StatsService) Stats(ctx context.Context, reviewerID int64) (*ReviewerStats, error) {
	reviewer, err := s.store.Reviewers.Get(ctx, reviewerID)
	if err != nil {
		return nil, err
	}

	current, needed, ratio := experience.Progress(reviewer.Experience)
	return &ReviewerStats{
		Reviewer:     reviewer,
		Rank:         experience.Rank(reviewer.Experience),
		RankXP:       current,
		RankXPNeeded: needed,
		RankProgress: ratio,
	}, nil
}
