package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClusterSummary is a read model used by list commands and the API.
type ClusterSummary struct {
	ClusterID             int64     `json:"cluster_id"`
	ClusterUUID           string    `json:"cluster_uuid"`
	RepresentativeStoryID int64     `json:"representative_story_id"`
	RepresentativeTitle   string    `json:"representative_title"`
	DominantTags          []string  `json:"dominant_tags"`
	StoryCount            int       `json:"story_count"`
	CountryCount          int       `json:"country_count"`
	FirstPubDate          time.Time `json:"first_pub_date"`
	LastPubDate           time.Time `json:"last_pub_date"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ClusterListOptions controls the paginated cluster listing.
type ClusterListOptions struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// ClusterDetail is one cluster plus all member stories.
type ClusterDetail struct {
	Cluster ClusterSummary        `json:"cluster"`
	Members []ClusterMemberDetail `json:"members"`
}

// ClusterMemberDetail is one member story within a cluster.
type ClusterMemberDetail struct {
	StoryID       int64     `json:"story_id"`
	StoryUUID     string    `json:"story_uuid"`
	Title         string    `json:"title"`
	PubDate       time.Time `json:"pub_date"`
	PublisherName string    `json:"publisher_name"`
	CategoryName  *string   `json:"category_name,omitempty"`
	Similarity    float64   `json:"similarity"`
	JoinedAt      time.Time `json:"joined_at"`
}

// ListClusters lists clusters most recently active first, optionally
// bounded by last publication date.
func (p *Pool) ListClusters(ctx context.Context, opts ClusterListOptions) ([]ClusterSummary, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var from, to time.Time
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if opts.To != nil {
		to = opts.To.UTC()
	} else {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	const q = `
SELECT
	sc.cluster_id,
	sc.cluster_uuid::text,
	sc.representative_story_id,
	COALESCE(rep.title, ''),
	sc.dominant_tags,
	sc.story_count,
	sc.country_count,
	sc.first_pub_date,
	sc.last_pub_date,
	sc.created_at,
	sc.updated_at
FROM news.story_clusters sc
LEFT JOIN news.stories rep
	ON rep.story_id = sc.representative_story_id
WHERE sc.last_pub_date >= $1
  AND sc.last_pub_date <= $2
ORDER BY sc.last_pub_date DESC, sc.story_count DESC, sc.cluster_id DESC
LIMIT $3 OFFSET $4
`

	rows, err := p.Query(ctx, q, from, to, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	items := make([]ClusterSummary, 0, opts.Limit)
	for rows.Next() {
		summary, err := scanClusterSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster rows: %w", err)
	}
	return items, nil
}

// GetClusterDetail returns one cluster by UUID with all member stories.
func (p *Pool) GetClusterDetail(ctx context.Context, clusterUUID string) (*ClusterDetail, error) {
	trimmedUUID := strings.TrimSpace(clusterUUID)
	if trimmedUUID == "" {
		return nil, fmt.Errorf("cluster UUID is required")
	}

	const headerQuery = `
SELECT
	sc.cluster_id,
	sc.cluster_uuid::text,
	sc.representative_story_id,
	COALESCE(rep.title, ''),
	sc.dominant_tags,
	sc.story_count,
	sc.country_count,
	sc.first_pub_date,
	sc.last_pub_date,
	sc.created_at,
	sc.updated_at
FROM news.story_clusters sc
LEFT JOIN news.stories rep
	ON rep.story_id = sc.representative_story_id
WHERE sc.cluster_uuid = $1::uuid
`

	header, err := scanClusterSummary(singleRow{p.QueryRow(ctx, headerQuery, trimmedUUID)})
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query cluster detail header: %w", err)
	}

	const membersQuery = `
SELECT
	s.story_id,
	s.story_uuid::text,
	s.title,
	s.pub_date,
	COALESCE(pub.name, ''),
	c.name,
	m.similarity,
	m.joined_at
FROM news.story_cluster_members m
JOIN news.stories s
	ON s.story_id = m.story_id
LEFT JOIN news.publishers pub
	ON pub.publisher_id = s.publisher_id
LEFT JOIN news.categories c
	ON c.category_id = s.category_id
WHERE m.cluster_id = $1
ORDER BY m.joined_at ASC, s.story_id ASC
`

	rows, err := p.Query(ctx, membersQuery, header.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster members: %w", err)
	}
	defer rows.Close()

	members := make([]ClusterMemberDetail, 0, header.StoryCount)
	for rows.Next() {
		var member ClusterMemberDetail
		if err := rows.Scan(
			&member.StoryID,
			&member.StoryUUID,
			&member.Title,
			&member.PubDate,
			&member.PublisherName,
			&member.CategoryName,
			&member.Similarity,
			&member.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}

	return &ClusterDetail{
		Cluster: header,
		Members: members,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// singleRow lets a QueryRow result flow through the shared scan helper.
type singleRow struct {
	row *Row
}

func (r singleRow) Scan(dest ...any) error { return r.row.Scan(dest...) }

func scanClusterSummary(scanner rowScanner) (ClusterSummary, error) {
	var (
		summary  ClusterSummary
		dominant string
	)
	if err := scanner.Scan(
		&summary.ClusterID,
		&summary.ClusterUUID,
		&summary.RepresentativeStoryID,
		&summary.RepresentativeTitle,
		&dominant,
		&summary.StoryCount,
		&summary.CountryCount,
		&summary.FirstPubDate,
		&summary.LastPubDate,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	); err != nil {
		if errors.Is(err, ErrNoRows) {
			return ClusterSummary{}, ErrNoRows
		}
		return ClusterSummary{}, fmt.Errorf("scan cluster summary row: %w", err)
	}
	summary.DominantTags = splitDominantTags(dominant)
	return summary, nil
}
