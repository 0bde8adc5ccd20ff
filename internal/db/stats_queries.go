package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ClusteringStats is the aggregate snapshot behind the stats command
// and the /stats endpoint.
type ClusteringStats struct {
	Stories            int64      `json:"stories"`
	Clusters           int64      `json:"clusters"`
	ClusteredStories   int64      `json:"clustered_stories"`
	UnclusteredStories int64      `json:"unclustered_stories"`
	JoinedToday        int64      `json:"joined_today"`
	FoundedToday       int64      `json:"founded_today"`
	LargestCluster     int64      `json:"largest_cluster"`
	LastClusterUpdate  *time.Time `json:"last_cluster_update,omitempty"`
}

// QueryClusterStats computes the snapshot. dayStart and dayEnd bound the
// per-day event counters (typically the current UTC day).
func (p *Pool) QueryClusterStats(ctx context.Context, dayStart, dayEnd time.Time) (*ClusteringStats, error) {
	stats := &ClusteringStats{}

	const countsQuery = `
SELECT
	(SELECT COUNT(*) FROM news.stories),
	(SELECT COUNT(*) FROM news.story_clusters),
	(SELECT COUNT(*) FROM news.story_cluster_members),
	(SELECT COALESCE(MAX(story_count), 0) FROM news.story_clusters)
`
	if err := p.QueryRow(ctx, countsQuery).Scan(
		&stats.Stories,
		&stats.Clusters,
		&stats.ClusteredStories,
		&stats.LargestCluster,
	); err != nil {
		return nil, fmt.Errorf("query cluster counts: %w", err)
	}
	stats.UnclusteredStories = stats.Stories - stats.ClusteredStories

	const eventsQuery = `
SELECT
	COUNT(*) FILTER (WHERE decision = $1),
	COUNT(*) FILTER (WHERE decision = $2)
FROM news.cluster_events
WHERE created_at >= $3
  AND created_at < $4
`
	if err := p.QueryRow(ctx, eventsQuery,
		"joined_existing", "founded_new", dayStart.UTC(), dayEnd.UTC(),
	).Scan(&stats.JoinedToday, &stats.FoundedToday); err != nil {
		return nil, fmt.Errorf("query cluster events: %w", err)
	}

	var lastUpdate *time.Time
	err := p.QueryRow(ctx, `SELECT MAX(updated_at) FROM news.story_clusters`).Scan(&lastUpdate)
	switch {
	case err == nil:
		if lastUpdate != nil {
			utc := lastUpdate.UTC()
			stats.LastClusterUpdate = &utc
		}
	case errors.Is(err, ErrNoRows):
		// no clusters yet
	default:
		return nil, fmt.Errorf("query last cluster update: %w", err)
	}

	return stats, nil
}
