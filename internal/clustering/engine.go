package clustering

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/globaltime"
)

// Config carries the recognized clustering options. Zero values fall back
// to the defaults below.
type Config struct {
	TimeWindowHours    int
	MinTagOverlap      int
	MinTitleSimilarity float64
	MaxClusterSize     int
	PruneAfterDays     int
	BatchSize          int
}

const (
	DefaultTimeWindowHours    = 48
	DefaultMinTagOverlap      = 2
	DefaultMinTitleSimilarity = 0.60
	DefaultMaxClusterSize     = 50
	DefaultPruneAfterDays     = 7
	DefaultBatchSize          = 500
)

func (c Config) normalized() Config {
	if c.TimeWindowHours <= 0 {
		c.TimeWindowHours = DefaultTimeWindowHours
	}
	if c.MinTagOverlap <= 0 {
		c.MinTagOverlap = DefaultMinTagOverlap
	}
	if c.MinTitleSimilarity <= 0 {
		c.MinTitleSimilarity = DefaultMinTitleSimilarity
	}
	if c.MaxClusterSize <= 0 {
		c.MaxClusterSize = DefaultMaxClusterSize
	}
	if c.PruneAfterDays <= 0 {
		c.PruneAfterDays = DefaultPruneAfterDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

type decisionKind string

const (
	decisionNone    decisionKind = ""
	decisionJoined  decisionKind = decisionKind(DecisionJoined)
	decisionFounded decisionKind = decisionKind(DecisionFounded)
)

type assignOutcome struct {
	Decision  decisionKind
	ClusterID int64
}

// Engine decides, one unclustered story at a time, whether the story joins
// an existing cluster, founds a new one with its best match, or stays
// unclustered for this pass.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg.normalized(),
		logger: logger,
	}
}

type scoredMatch struct {
	Story Story
	Tags  []string
	Score float64
}

// assignStoryTx runs the assignment state machine for one story inside the
// caller's transaction.
func (e *Engine) assignStoryTx(ctx context.Context, tx StoreTx, story Story) (assignOutcome, error) {
	existing, err := tx.MembershipByStory(ctx, story.ID)
	if err != nil {
		return assignOutcome{}, fmt.Errorf("lookup membership story_id=%d: %w", story.ID, err)
	}
	if existing != nil {
		// Already assigned in an earlier pass; nothing to do.
		return assignOutcome{}, nil
	}

	tags, err := tx.StoryTags(ctx, story.ID)
	if err != nil {
		return assignOutcome{}, fmt.Errorf("load tags story_id=%d: %w", story.ID, err)
	}
	if len(TagSet(tags)) < e.cfg.MinTagOverlap {
		// Too little signal to search with; unclusterable this round.
		return assignOutcome{}, nil
	}

	window := time.Duration(e.cfg.TimeWindowHours) * time.Hour
	candidates, err := tx.FindCandidates(ctx, story, tags, window, e.cfg.MinTagOverlap)
	if err != nil {
		return assignOutcome{}, fmt.Errorf("find candidates story_id=%d: %w", story.ID, err)
	}
	if len(candidates) == 0 {
		return assignOutcome{}, nil
	}

	matches, err := e.scoreCandidates(ctx, tx, story, tags, candidates)
	if err != nil {
		return assignOutcome{}, err
	}
	if len(matches) == 0 {
		return assignOutcome{}, nil
	}

	// Join an existing cluster through the best-scoring clustered match.
	// The best unclustered match is remembered as the founding partner,
	// since a new cluster needs two members from the start.
	var founder *scoredMatch
	for i := range matches {
		match := matches[i]
		membership, err := tx.MembershipByStory(ctx, match.Story.ID)
		if err != nil {
			return assignOutcome{}, fmt.Errorf("lookup match membership story_id=%d: %w", match.Story.ID, err)
		}
		if membership == nil {
			if founder == nil {
				founder = &matches[i]
			}
			continue
		}

		cluster, err := tx.ClusterByID(ctx, membership.ClusterID)
		if err != nil {
			return assignOutcome{}, fmt.Errorf("load cluster cluster_id=%d: %w", membership.ClusterID, err)
		}
		if cluster == nil || cluster.StoryCount >= e.cfg.MaxClusterSize {
			continue
		}

		added, err := e.addStoryToCluster(ctx, tx, cluster, story, tags, match.Score, decisionJoined)
		if err != nil {
			return assignOutcome{}, err
		}
		if added {
			return assignOutcome{Decision: decisionJoined, ClusterID: cluster.ID}, nil
		}
	}

	if founder == nil {
		// Every qualifying match sits in a full cluster; the story stays
		// unclustered this pass.
		return assignOutcome{}, nil
	}
	return e.foundCluster(ctx, tx, story, tags, *founder)
}

func (e *Engine) scoreCandidates(ctx context.Context, tx StoreTx, story Story, tags []string, candidates []Story) ([]scoredMatch, error) {
	matches := make([]scoredMatch, 0, len(candidates))
	for _, candidate := range candidates {
		candidateTags, err := tx.StoryTags(ctx, candidate.ID)
		if err != nil {
			return nil, fmt.Errorf("load candidate tags story_id=%d: %w", candidate.ID, err)
		}
		score := CombinedSimilarity(story.Title, candidate.Title, tags, candidateTags)
		if score < e.cfg.MinTitleSimilarity {
			continue
		}
		matches = append(matches, scoredMatch{
			Story: candidate,
			Tags:  candidateTags,
			Score: score,
		})
	}

	// Score descending; candidate id ascending keeps ties reproducible
	// across store engines.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Story.ID < matches[j].Story.ID
	})
	return matches, nil
}

// foundCluster creates a new cluster holding the story and its top match,
// folding into an existing cluster when the content hash already exists.
func (e *Engine) foundCluster(ctx context.Context, tx StoreTx, story Story, tags []string, top scoredMatch) (assignOutcome, error) {
	representative, other := story, top.Story
	representativeTags, otherTags := tags, top.Tags
	if other.PubDate.Before(representative.PubDate) ||
		(other.PubDate.Equal(representative.PubDate) && other.ID < representative.ID) {
		representative, other = other, representative
		representativeTags, otherTags = otherTags, representativeTags
	}

	dominant := dominantTags(append(append([]string(nil), representativeTags...), otherTags...))
	hash := clusterContentHash(dominant, representative.PubDate)

	collided, err := tx.ClusterByContentHash(ctx, hash)
	if err != nil {
		return assignOutcome{}, fmt.Errorf("lookup cluster by content hash: %w", err)
	}
	if collided != nil {
		// Concurrent pass created the same event cluster; fold both
		// stories into it instead of erroring.
		return e.foldIntoCluster(ctx, tx, collided, story, tags, top)
	}

	now := globaltime.UTC()
	cluster := &Cluster{
		ContentHash:           hash,
		RepresentativeStoryID: representative.ID,
		DominantTags:          dominant,
		FirstPubDate:          representative.PubDate,
		LastPubDate:           representative.PubDate,
	}
	clusterID, err := tx.CreateCluster(ctx, cluster, now)
	if err != nil {
		return assignOutcome{}, fmt.Errorf("create cluster for story_id=%d: %w", story.ID, err)
	}
	cluster.ID = clusterID

	if _, err := e.addStoryToCluster(ctx, tx, cluster, representative, representativeTags, 1.0, decisionFounded); err != nil {
		return assignOutcome{}, err
	}
	if _, err := e.addStoryToCluster(ctx, tx, cluster, other, otherTags, top.Score, decisionFounded); err != nil {
		return assignOutcome{}, err
	}

	return assignOutcome{Decision: decisionFounded, ClusterID: clusterID}, nil
}

func (e *Engine) foldIntoCluster(ctx context.Context, tx StoreTx, cluster *Cluster, story Story, tags []string, top scoredMatch) (assignOutcome, error) {
	anchorAdded := false
	if cluster.StoryCount < e.cfg.MaxClusterSize {
		added, err := e.addStoryToCluster(ctx, tx, cluster, story, tags, top.Score, decisionJoined)
		if err != nil {
			return assignOutcome{}, err
		}
		anchorAdded = added
	}
	if cluster.StoryCount < e.cfg.MaxClusterSize {
		if _, err := e.addStoryToCluster(ctx, tx, cluster, top.Story, top.Tags, top.Score, decisionJoined); err != nil {
			return assignOutcome{}, err
		}
	}

	if !anchorAdded {
		return assignOutcome{}, nil
	}
	return assignOutcome{Decision: decisionJoined, ClusterID: cluster.ID}, nil
}

// addStoryToCluster inserts the membership row, refreshes the cluster's
// aggregates, and records the ledger event. Returns false when the story
// already belongs to a cluster.
func (e *Engine) addStoryToCluster(ctx context.Context, tx StoreTx, cluster *Cluster, story Story, tags []string, score float64, decision decisionKind) (bool, error) {
	now := globaltime.UTC()
	inserted, err := tx.AddMember(ctx, Membership{
		ClusterID:  cluster.ID,
		StoryID:    story.ID,
		Similarity: score,
		JoinedAt:   now,
	})
	if err != nil {
		return false, fmt.Errorf("add member cluster_id=%d story_id=%d: %w", cluster.ID, story.ID, err)
	}
	if !inserted {
		return false, nil
	}

	if err := e.refreshClusterTx(ctx, tx, cluster, story, now); err != nil {
		return false, err
	}

	if err := tx.RecordEvent(ctx, Event{
		StoryID:   story.ID,
		ClusterID: cluster.ID,
		Decision:  string(decision),
		Score:     score,
		CreatedAt: now,
	}); err != nil {
		return false, fmt.Errorf("record event story_id=%d: %w", story.ID, err)
	}

	e.logger.Debug().
		Int64("story_id", story.ID).
		Int64("cluster_id", cluster.ID).
		Str("decision", string(decision)).
		Float64("score", score).
		Msg("story assigned to cluster")

	return true, nil
}

// clusterContentHash derives the cluster's idempotency key from its
// dominant tags and the representative story's publication time.
func clusterContentHash(dominant []string, representativePubDate time.Time) []byte {
	payload := strings.Join(dominant, ",") + "|" + representativePubDate.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(payload))
	return sum[:]
}
