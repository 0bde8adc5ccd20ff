package clustering

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/globaltime"
)

// ClusterStats is the statistics record returned by a clustering run.
type ClusterStats struct {
	StoriesProcessed int `json:"stories_processed"`
	StoriesClustered int `json:"stories_clustered"`
	NewClusters      int `json:"new_clusters"`
	Errors           int `json:"errors"`
}

// PruneStats is the statistics record returned by a pruning run.
type PruneStats struct {
	ClustersDeleted int64 `json:"clusters_deleted"`
}

// Service is the batch orchestrator: it drives the assignment engine over
// time-bounded batches of unclustered stories and prunes stale clusters.
type Service struct {
	store  Store
	engine *Engine
	cfg    Config
	logger zerolog.Logger
}

func NewService(store Store, cfg Config, logger zerolog.Logger) *Service {
	normalized := cfg.normalized()
	return &Service{
		store:  store,
		engine: NewEngine(normalized, logger),
		cfg:    normalized,
		logger: logger,
	}
}

// ClusterRecentStories selects up to batchSize unclustered stories created
// within the last hours, newest publication first, and runs the assignment
// engine for each inside its own transaction. A failing story is counted
// and skipped; it never aborts the batch. Zero arguments fall back to the
// configured defaults.
func (s *Service) ClusterRecentStories(ctx context.Context, hours, batchSize int) (ClusterStats, error) {
	if s == nil || s.store == nil {
		return ClusterStats{}, fmt.Errorf("clustering service is not initialized")
	}
	if hours <= 0 {
		hours = s.cfg.TimeWindowHours
	}
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	since := globaltime.UTC().Add(-time.Duration(hours) * time.Hour)
	stories, err := s.store.FindUnclusteredStories(ctx, since, batchSize)
	if err != nil {
		return ClusterStats{}, fmt.Errorf("select unclustered stories: %w", err)
	}

	var stats ClusterStats
	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var outcome assignOutcome
		err := s.store.InTransaction(ctx, func(tx StoreTx) error {
			result, assignErr := s.engine.assignStoryTx(ctx, tx, story)
			if assignErr != nil {
				return assignErr
			}
			outcome = result
			return nil
		})
		if err != nil {
			stats.Errors++
			s.logger.Warn().
				Err(err).
				Int64("story_id", story.ID).
				Msg("story assignment failed; skipping")
			continue
		}

		stats.StoriesProcessed++
		switch outcome.Decision {
		case decisionJoined:
			stats.StoriesClustered++
		case decisionFounded:
			stats.StoriesClustered++
			stats.NewClusters++
		}
	}

	s.logger.Info().
		Int("stories_processed", stats.StoriesProcessed).
		Int("stories_clustered", stats.StoriesClustered).
		Int("new_clusters", stats.NewClusters).
		Int("errors", stats.Errors).
		Msg("clustering pass finished")

	return stats, nil
}

// PruneOldClusters deletes every cluster whose most recent member was
// published more than days ago, cascading to membership rows only.
func (s *Service) PruneOldClusters(ctx context.Context, days int) (PruneStats, error) {
	if s == nil || s.store == nil {
		return PruneStats{}, fmt.Errorf("clustering service is not initialized")
	}
	if days <= 0 {
		days = s.cfg.PruneAfterDays
	}

	cutoff := globaltime.UTC().AddDate(0, 0, -days)
	deleted, err := s.store.DeleteClustersBefore(ctx, cutoff)
	if err != nil {
		return PruneStats{}, fmt.Errorf("prune clusters before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	s.logger.Info().
		Int64("clusters_deleted", deleted).
		Time("cutoff", cutoff).
		Msg("pruning pass finished")

	return PruneStats{ClustersDeleted: deleted}, nil
}
