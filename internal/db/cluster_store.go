package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsgrid.app/grid/internal/clustering"
)

// ClusterStore adapts the pool to the clustering engine's store contract.
type ClusterStore struct {
	pool *Pool
}

func (p *Pool) ClusterStore() *ClusterStore {
	return &ClusterStore{pool: p}
}

func (s *ClusterStore) FindUnclusteredStories(ctx context.Context, since time.Time, limit int) ([]clustering.Story, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("cluster store is not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	s.story_id,
	s.title,
	s.pub_date,
	s.publisher_id,
	COALESCE(c.name, '')
FROM news.stories s
LEFT JOIN news.categories c
	ON c.category_id = s.category_id
WHERE s.created_at >= $1
  AND NOT EXISTS (
	SELECT 1
	FROM news.story_cluster_members m
	WHERE m.story_id = s.story_id
)
ORDER BY s.pub_date DESC, s.story_id DESC
LIMIT $2
`

	rows, err := s.pool.Query(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query unclustered stories: %w", err)
	}
	defer rows.Close()

	return scanStories(rows, limit)
}

func (s *ClusterStore) DeleteClustersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("cluster store is not initialized")
	}

	const q = `
DELETE FROM news.story_clusters
WHERE last_pub_date < $1
`

	tag, err := s.pool.Exec(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete stale clusters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ClusterStore) InTransaction(ctx context.Context, fn func(tx clustering.StoreTx) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("cluster store is not initialized")
	}

	tx, err := s.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin cluster tx: %w", err)
	}

	if err := fn(&clusterTx{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit cluster tx: %w", err)
	}
	return nil
}

// clusterTx implements the per-story transactional store surface on top
// of one open transaction.
type clusterTx struct {
	q querier
}

func (t *clusterTx) StoryTags(ctx context.Context, storyID int64) ([]string, error) {
	const q = `
SELECT LOWER(tag)
FROM news.story_tags
WHERE story_id = $1
ORDER BY tag
`

	rows, err := t.q.Query(ctx, q, storyID)
	if err != nil {
		return nil, fmt.Errorf("query story tags story_id=%d: %w", storyID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan story tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story tags: %w", err)
	}
	return tags, nil
}

func (t *clusterTx) FindCandidates(ctx context.Context, anchor clustering.Story, tags []string, window time.Duration, minOverlap int) ([]clustering.Story, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	folded := make([]string, 0, len(tags))
	for _, tag := range tags {
		folded = append(folded, strings.ToLower(strings.TrimSpace(tag)))
	}

	from := anchor.PubDate.UTC().Add(-window)
	to := anchor.PubDate.UTC().Add(window)

	const q = `
SELECT
	s.story_id,
	s.title,
	s.pub_date,
	s.publisher_id,
	COALESCE(c.name, '')
FROM news.stories s
JOIN news.story_tags t
	ON t.story_id = s.story_id
LEFT JOIN news.categories c
	ON c.category_id = s.category_id
WHERE s.story_id <> $1
  AND s.publisher_id <> $2
  AND s.pub_date >= $3
  AND s.pub_date <= $4
  AND LOWER(t.tag) = ANY($5::text[])
GROUP BY s.story_id, s.title, s.pub_date, s.publisher_id, c.name
HAVING COUNT(DISTINCT LOWER(t.tag)) >= $6
ORDER BY s.pub_date DESC, s.story_id ASC
`

	rows, err := t.q.Query(ctx, q, anchor.ID, anchor.PublisherID, from, to, folded, minOverlap)
	if err != nil {
		return nil, fmt.Errorf("query candidate stories anchor_id=%d: %w", anchor.ID, err)
	}
	defer rows.Close()

	return scanStories(rows, 16)
}

func (t *clusterTx) MembershipByStory(ctx context.Context, storyID int64) (*clustering.Membership, error) {
	const q = `
SELECT cluster_id, story_id, similarity, joined_at
FROM news.story_cluster_members
WHERE story_id = $1
`

	var m clustering.Membership
	err := t.q.QueryRow(ctx, q, storyID).Scan(&m.ClusterID, &m.StoryID, &m.Similarity, &m.JoinedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query membership story_id=%d: %w", storyID, err)
	}
	return &m, nil
}

func (t *clusterTx) ClusterByID(ctx context.Context, clusterID int64) (*clustering.Cluster, error) {
	const q = clusterSelectColumns + `
WHERE cluster_id = $1
`
	return t.scanOneCluster(ctx, q, clusterID)
}

func (t *clusterTx) ClusterByContentHash(ctx context.Context, hash []byte) (*clustering.Cluster, error) {
	const q = clusterSelectColumns + `
WHERE content_hash = $1
`
	return t.scanOneCluster(ctx, q, hash)
}

const clusterSelectColumns = `
SELECT
	cluster_id,
	content_hash,
	representative_story_id,
	dominant_tags,
	story_count,
	country_count,
	first_pub_date,
	last_pub_date
FROM news.story_clusters
`

func (t *clusterTx) scanOneCluster(ctx context.Context, query string, arg any) (*clustering.Cluster, error) {
	var (
		cluster  clustering.Cluster
		dominant string
	)
	err := t.q.QueryRow(ctx, query, arg).Scan(
		&cluster.ID,
		&cluster.ContentHash,
		&cluster.RepresentativeStoryID,
		&dominant,
		&cluster.StoryCount,
		&cluster.CountryCount,
		&cluster.FirstPubDate,
		&cluster.LastPubDate,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query cluster: %w", err)
	}
	cluster.DominantTags = splitDominantTags(dominant)
	return &cluster, nil
}

func (t *clusterTx) CreateCluster(ctx context.Context, cluster *clustering.Cluster, createdAt time.Time) (int64, error) {
	const q = `
INSERT INTO news.story_clusters (
	content_hash,
	representative_story_id,
	dominant_tags,
	story_count,
	country_count,
	first_pub_date,
	last_pub_date,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $6)
RETURNING cluster_id
`

	var clusterID int64
	err := t.q.QueryRow(
		ctx,
		q,
		cluster.ContentHash,
		cluster.RepresentativeStoryID,
		joinDominantTags(cluster.DominantTags),
		cluster.FirstPubDate.UTC(),
		cluster.LastPubDate.UTC(),
		createdAt.UTC(),
	).Scan(&clusterID)
	if err != nil {
		return 0, fmt.Errorf("insert cluster representative_story_id=%d: %w", cluster.RepresentativeStoryID, err)
	}
	return clusterID, nil
}

func (t *clusterTx) AddMember(ctx context.Context, member clustering.Membership) (bool, error) {
	const q = `
INSERT INTO news.story_cluster_members (
	cluster_id,
	story_id,
	similarity,
	joined_at
)
VALUES ($1, $2, $3, $4)
ON CONFLICT (story_id) DO NOTHING
`

	tag, err := t.q.Exec(ctx, q, member.ClusterID, member.StoryID, member.Similarity, member.JoinedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert member cluster_id=%d story_id=%d: %w", member.ClusterID, member.StoryID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *clusterTx) UpdateClusterAggregates(ctx context.Context, cluster *clustering.Cluster, updatedAt time.Time) error {
	const q = `
UPDATE news.story_clusters
SET
	dominant_tags = $2,
	story_count = $3,
	country_count = $4,
	first_pub_date = $5,
	last_pub_date = $6,
	updated_at = $7
WHERE cluster_id = $1
`

	_, err := t.q.Exec(
		ctx,
		q,
		cluster.ID,
		joinDominantTags(cluster.DominantTags),
		cluster.StoryCount,
		cluster.CountryCount,
		cluster.FirstPubDate.UTC(),
		cluster.LastPubDate.UTC(),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("update cluster aggregates cluster_id=%d: %w", cluster.ID, err)
	}
	return nil
}

func (t *clusterTx) MemberStories(ctx context.Context, clusterID int64) ([]clustering.Story, error) {
	const q = `
SELECT
	s.story_id,
	s.title,
	s.pub_date,
	s.publisher_id,
	COALESCE(c.name, '')
FROM news.story_cluster_members m
JOIN news.stories s
	ON s.story_id = m.story_id
LEFT JOIN news.categories c
	ON c.category_id = s.category_id
WHERE m.cluster_id = $1
ORDER BY m.joined_at ASC, s.story_id ASC
`

	rows, err := t.q.Query(ctx, q, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query member stories cluster_id=%d: %w", clusterID, err)
	}
	defer rows.Close()

	return scanStories(rows, 8)
}

func (t *clusterTx) RecordEvent(ctx context.Context, event clustering.Event) error {
	const q = `
INSERT INTO news.cluster_events (
	story_id,
	cluster_id,
	decision,
	score,
	created_at
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (story_id) DO NOTHING
`

	_, err := t.q.Exec(ctx, q, event.StoryID, event.ClusterID, event.Decision, event.Score, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert cluster event story_id=%d: %w", event.StoryID, err)
	}
	return nil
}

func scanStories(rows *Rows, capacity int) ([]clustering.Story, error) {
	if capacity < 0 {
		capacity = 0
	}

	stories := make([]clustering.Story, 0, capacity)
	for rows.Next() {
		var story clustering.Story
		if err := rows.Scan(
			&story.ID,
			&story.Title,
			&story.PubDate,
			&story.PublisherID,
			&story.CategoryName,
		); err != nil {
			return nil, fmt.Errorf("scan story row: %w", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story rows: %w", err)
	}
	return stories, nil
}

func joinDominantTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitDominantTags(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
