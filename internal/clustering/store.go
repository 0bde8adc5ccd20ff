package clustering

import (
	"context"
	"time"
)

// Story is the read model the engine works with. Tag sets are loaded
// through explicit store calls, never lazily.
type Story struct {
	ID           int64
	Title        string
	PubDate      time.Time
	PublisherID  int64
	CategoryName string // empty when the story has no resolvable category
}

// Cluster mirrors one news.story_clusters row.
type Cluster struct {
	ID                    int64
	ContentHash           []byte
	RepresentativeStoryID int64
	DominantTags          []string
	StoryCount            int
	CountryCount          int
	FirstPubDate          time.Time
	LastPubDate           time.Time
}

// Membership links one story to exactly one cluster.
type Membership struct {
	ClusterID  int64
	StoryID    int64
	Similarity float64
	JoinedAt   time.Time
}

// Event decision kinds recorded in the assignment ledger.
const (
	DecisionJoined  = "joined_existing"
	DecisionFounded = "founded_new"
)

// Event is one row of the assignment ledger.
type Event struct {
	StoryID   int64
	ClusterID int64
	Decision  string
	Score     float64
	CreatedAt time.Time
}

// Store is the engine's view of the relational store outside of a
// per-story transaction.
type Store interface {
	// FindUnclusteredStories returns stories created at or after since
	// with no membership row, newest publication first, up to limit.
	FindUnclusteredStories(ctx context.Context, since time.Time, limit int) ([]Story, error)

	// DeleteClustersBefore removes every cluster whose last publication
	// date is older than cutoff, cascading to its membership rows, and
	// returns the number of clusters removed. Story rows are untouched.
	DeleteClustersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// InTransaction runs fn inside one transaction; fn's error rolls the
	// transaction back, otherwise it commits.
	InTransaction(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx is the per-story transactional surface of the store.
type StoreTx interface {
	// StoryTags returns the story's lower-cased tag strings in a
	// deterministic order.
	StoryTags(ctx context.Context, storyID int64) ([]string, error)

	// FindCandidates returns stories published within the symmetric
	// window around the anchor, from a different publisher, sharing at
	// least minOverlap of the given case-folded tags.
	FindCandidates(ctx context.Context, anchor Story, tags []string, window time.Duration, minOverlap int) ([]Story, error)

	// MembershipByStory returns the story's membership row, or nil when
	// the story is unclustered.
	MembershipByStory(ctx context.Context, storyID int64) (*Membership, error)

	ClusterByID(ctx context.Context, clusterID int64) (*Cluster, error)

	// ClusterByContentHash returns the cluster carrying the given
	// idempotency hash, or nil.
	ClusterByContentHash(ctx context.Context, hash []byte) (*Cluster, error)

	// CreateCluster inserts the cluster row and returns its id.
	CreateCluster(ctx context.Context, cluster *Cluster, createdAt time.Time) (int64, error)

	// AddMember inserts a membership row; returns false when the story
	// already belongs to a cluster (unique story_id constraint).
	AddMember(ctx context.Context, member Membership) (bool, error)

	// UpdateClusterAggregates persists the cluster's recomputed
	// aggregate fields.
	UpdateClusterAggregates(ctx context.Context, cluster *Cluster, updatedAt time.Time) error

	// MemberStories returns the cluster's member stories in join order.
	MemberStories(ctx context.Context, clusterID int64) ([]Story, error)

	// RecordEvent appends one assignment ledger row.
	RecordEvent(ctx context.Context, event Event) error
}
