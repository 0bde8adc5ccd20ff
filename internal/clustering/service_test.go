package clustering

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/globaltime"
)

// memStore is an in-memory Store + StoreTx used to exercise the engine
// without a database. Transactions are flat: fn runs against the same
// state, which is enough for single-threaded assignment tests.
type memStore struct {
	stories     map[int64]Story
	createdAt   map[int64]time.Time
	tags        map[int64][]string
	clusters    map[int64]*Cluster
	memberships map[int64]Membership
	joinOrder   map[int64][]int64
	events      map[int64]Event

	nextClusterID int64

	findCandidatesCalls int
	failCandidatesFor   map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		stories:           make(map[int64]Story),
		createdAt:         make(map[int64]time.Time),
		tags:              make(map[int64][]string),
		clusters:          make(map[int64]*Cluster),
		memberships:       make(map[int64]Membership),
		joinOrder:         make(map[int64][]int64),
		events:            make(map[int64]Event),
		failCandidatesFor: make(map[int64]bool),
	}
}

func (m *memStore) addStory(story Story, tags ...string) {
	m.stories[story.ID] = story
	m.createdAt[story.ID] = story.PubDate
	folded := make([]string, 0, len(tags))
	for _, tag := range tags {
		folded = append(folded, strings.ToLower(strings.TrimSpace(tag)))
	}
	sort.Strings(folded)
	m.tags[story.ID] = folded
}

func (m *memStore) FindUnclusteredStories(_ context.Context, since time.Time, limit int) ([]Story, error) {
	var out []Story
	for id, story := range m.stories {
		if m.createdAt[id].Before(since) {
			continue
		}
		if _, clustered := m.memberships[id]; clustered {
			continue
		}
		out = append(out, story)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeleteClustersBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, cluster := range m.clusters {
		if !cluster.LastPubDate.Before(cutoff) {
			continue
		}
		for _, storyID := range m.joinOrder[id] {
			delete(m.memberships, storyID)
		}
		delete(m.joinOrder, id)
		delete(m.clusters, id)
		deleted++
	}
	return deleted, nil
}

func (m *memStore) InTransaction(_ context.Context, fn func(tx StoreTx) error) error {
	return fn(m)
}

func (m *memStore) StoryTags(_ context.Context, storyID int64) ([]string, error) {
	return m.tags[storyID], nil
}

func (m *memStore) FindCandidates(_ context.Context, anchor Story, tags []string, window time.Duration, minOverlap int) ([]Story, error) {
	m.findCandidatesCalls++
	if m.failCandidatesFor[anchor.ID] {
		return nil, fmt.Errorf("simulated candidate query failure")
	}

	anchorSet := TagSet(tags)
	var out []Story
	for id, story := range m.stories {
		if id == anchor.ID || story.PublisherID == anchor.PublisherID {
			continue
		}
		delta := story.PubDate.Sub(anchor.PubDate)
		if delta < -window || delta > window {
			continue
		}
		if TagOverlap(anchorSet, TagSet(m.tags[id])) < minOverlap {
			continue
		}
		out = append(out, story)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) MembershipByStory(_ context.Context, storyID int64) (*Membership, error) {
	membership, ok := m.memberships[storyID]
	if !ok {
		return nil, nil
	}
	copied := membership
	return &copied, nil
}

func (m *memStore) ClusterByID(_ context.Context, clusterID int64) (*Cluster, error) {
	cluster, ok := m.clusters[clusterID]
	if !ok {
		return nil, nil
	}
	copied := *cluster
	return &copied, nil
}

func (m *memStore) ClusterByContentHash(_ context.Context, hash []byte) (*Cluster, error) {
	for _, cluster := range m.clusters {
		if string(cluster.ContentHash) == string(hash) {
			copied := *cluster
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCluster(_ context.Context, cluster *Cluster, _ time.Time) (int64, error) {
	m.nextClusterID++
	stored := *cluster
	stored.ID = m.nextClusterID
	m.clusters[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memStore) AddMember(_ context.Context, member Membership) (bool, error) {
	if _, exists := m.memberships[member.StoryID]; exists {
		return false, nil
	}
	m.memberships[member.StoryID] = member
	m.joinOrder[member.ClusterID] = append(m.joinOrder[member.ClusterID], member.StoryID)
	return true, nil
}

func (m *memStore) UpdateClusterAggregates(_ context.Context, cluster *Cluster, _ time.Time) error {
	stored, ok := m.clusters[cluster.ID]
	if !ok {
		return fmt.Errorf("cluster %d not found", cluster.ID)
	}
	*stored = *cluster
	return nil
}

func (m *memStore) MemberStories(_ context.Context, clusterID int64) ([]Story, error) {
	var out []Story
	for _, storyID := range m.joinOrder[clusterID] {
		out = append(out, m.stories[storyID])
	}
	return out, nil
}

func (m *memStore) RecordEvent(_ context.Context, event Event) error {
	if _, exists := m.events[event.StoryID]; exists {
		return nil
	}
	m.events[event.StoryID] = event
	return nil
}

func (m *memStore) clusterOf(t *testing.T, storyID int64) *Cluster {
	t.Helper()
	membership, ok := m.memberships[storyID]
	if !ok {
		t.Fatalf("story %d is not clustered", storyID)
	}
	return m.clusters[membership.ClusterID]
}

func testService(store Store) *Service {
	return NewService(store, Config{}, zerolog.Nop())
}

func TestClusterRecentStories_FoundsClusterWithTwoMembers(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Earthquake strikes northern Japan", PubDate: base, PublisherID: 10, CategoryName: "jp_news"},
		"japan", "earthquake", "disaster")
	store.addStory(Story{ID: 2, Title: "Earthquake strikes northern Japan region", PubDate: base.Add(time.Hour), PublisherID: 20, CategoryName: "us_world"},
		"japan", "earthquake", "rescue")

	stats, err := testService(store).ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.NewClusters != 1 {
		t.Fatalf("expected 1 new cluster, got %+v", stats)
	}
	if stats.StoriesClustered != 1 {
		t.Fatalf("expected 1 counted clustered story (the anchor), got %+v", stats)
	}
	if len(store.clusters) != 1 {
		t.Fatalf("expected exactly one cluster, got %d", len(store.clusters))
	}

	cluster := store.clusterOf(t, 1)
	if cluster != store.clusterOf(t, 2) {
		t.Fatalf("expected both stories in the same cluster")
	}
	if cluster.StoryCount != 2 {
		t.Fatalf("expected story_count 2, got %d", cluster.StoryCount)
	}
	if cluster.RepresentativeStoryID != 1 {
		t.Fatalf("expected earlier story as representative, got %d", cluster.RepresentativeStoryID)
	}
	if cluster.CountryCount != 2 {
		t.Fatalf("expected countries JP and US, got %d", cluster.CountryCount)
	}
	if !cluster.FirstPubDate.Equal(base) || !cluster.LastPubDate.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected pub date bounds: %v..%v", cluster.FirstPubDate, cluster.LastPubDate)
	}

	if event, ok := store.events[1]; !ok || event.Decision != DecisionFounded {
		t.Fatalf("expected founded_new event for story 1, got %+v", store.events[1])
	}
	if membership := store.memberships[1]; membership.Similarity != 1.0 {
		t.Fatalf("expected representative similarity 1.0, got %f", membership.Similarity)
	}
}

func TestClusterRecentStories_ThirdStoryJoinsExisting(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Central bank raises interest rates", PubDate: base, PublisherID: 10, CategoryName: "us_economy"},
		"rates", "economy", "centralbank")
	store.addStory(Story{ID: 2, Title: "Central bank raises interest rates again", PubDate: base.Add(time.Hour), PublisherID: 20, CategoryName: "uk_economy"},
		"rates", "economy", "inflation")
	store.addStory(Story{ID: 3, Title: "Central bank raises interest rates sharply", PubDate: base.Add(2 * time.Hour), PublisherID: 30, CategoryName: "de_economy"},
		"rates", "economy", "markets")

	svc := testService(store)
	stats, err := svc.ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.clusters) != 1 {
		t.Fatalf("expected one cluster, got %d", len(store.clusters))
	}
	cluster := store.clusterOf(t, 3)
	if cluster.StoryCount != 3 {
		t.Fatalf("expected story_count 3, got %d", cluster.StoryCount)
	}
	if cluster.CountryCount != 3 {
		t.Fatalf("expected 3 countries, got %d", cluster.CountryCount)
	}
	if stats.NewClusters != 1 {
		t.Fatalf("expected exactly one founded cluster, got %+v", stats)
	}

	joined := 0
	for _, event := range store.events {
		if event.Decision == DecisionJoined {
			joined++
		}
	}
	if joined != 1 {
		t.Fatalf("expected one joined_existing event, got %d", joined)
	}
}

func TestClusterRecentStories_SecondRunIsNoOp(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Wildfire spreads across coastal hills", PubDate: base, PublisherID: 10, CategoryName: "us_news"},
		"wildfire", "california")
	store.addStory(Story{ID: 2, Title: "Wildfire spreads across coastal hills fast", PubDate: base.Add(time.Hour), PublisherID: 20, CategoryName: "us_west"},
		"wildfire", "california")

	svc := testService(store)
	if _, err := svc.ClusterRecentStories(context.Background(), 0, 0); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	clustersBefore := len(store.clusters)
	membersBefore := len(store.memberships)
	countBefore := store.clusterOf(t, 1).StoryCount

	stats, err := svc.ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if stats.StoriesClustered != 0 || stats.NewClusters != 0 {
		t.Fatalf("expected second run to assign nothing, got %+v", stats)
	}
	if len(store.clusters) != clustersBefore || len(store.memberships) != membersBefore {
		t.Fatalf("expected state unchanged after second run")
	}
	if store.clusterOf(t, 1).StoryCount != countBefore {
		t.Fatalf("expected story_count unchanged, got %d", store.clusterOf(t, 1).StoryCount)
	}
}

func TestClusterRecentStories_TooFewTagsSkipsCandidateSearch(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Lone story with one tag", PubDate: base, PublisherID: 10, CategoryName: "us_news"},
		"solo")

	stats, err := testService(store).ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.findCandidatesCalls != 0 {
		t.Fatalf("expected no candidate query for a story below the overlap floor, got %d calls", store.findCandidatesCalls)
	}
	if stats.StoriesProcessed != 1 || stats.StoriesClustered != 0 {
		t.Fatalf("expected story processed but unclustered, got %+v", stats)
	}
	if len(store.memberships) != 0 {
		t.Fatalf("expected no membership rows")
	}
}

func TestClusterRecentStories_FullClusterRejectsNewMember(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// A full cluster with MaxClusterSize=3 and all matches already inside.
	cluster := &Cluster{ID: 77, ContentHash: []byte("full"), RepresentativeStoryID: 1, StoryCount: 3,
		FirstPubDate: base, LastPubDate: base.Add(time.Hour)}
	store.clusters[77] = cluster
	store.nextClusterID = 77
	for id := int64(1); id <= 3; id++ {
		story := Story{ID: id, Title: "Port strike halts grain exports", PubDate: base, PublisherID: 9 + id, CategoryName: "us_trade"}
		store.addStory(story, "strike", "port", "grain")
		store.memberships[id] = Membership{ClusterID: 77, StoryID: id, Similarity: 1}
		store.joinOrder[77] = append(store.joinOrder[77], id)
	}
	store.addStory(Story{ID: 4, Title: "Port strike halts grain exports today", PubDate: base.Add(time.Hour), PublisherID: 40, CategoryName: "ca_trade"},
		"strike", "port", "grain")

	svc := NewService(store, Config{MaxClusterSize: 3}, zerolog.Nop())
	stats, err := svc.ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, clustered := store.memberships[4]; clustered {
		t.Fatalf("expected story 4 to stay unclustered against a full cluster")
	}
	if stats.StoriesClustered != 0 || stats.NewClusters != 0 {
		t.Fatalf("expected no assignments, got %+v", stats)
	}
	if cluster.StoryCount != 3 {
		t.Fatalf("expected cluster to stay at capacity, got %d", cluster.StoryCount)
	}
}

func TestClusterRecentStories_FailingStoryIsCountedAndSkipped(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Flood warnings issued along river", PubDate: base, PublisherID: 10, CategoryName: "us_news"},
		"flood", "river")
	store.addStory(Story{ID: 2, Title: "Flood warnings issued along river banks", PubDate: base.Add(time.Hour), PublisherID: 20, CategoryName: "us_weather"},
		"flood", "river")
	store.failCandidatesFor[2] = true

	stats, err := testService(store).ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("expected batch to survive a per-story failure, got %v", err)
	}

	if stats.Errors != 1 {
		t.Fatalf("expected 1 error tallied, got %+v", stats)
	}
	// Story 1 still got its own transaction and found story 2 as partner.
	if stats.NewClusters != 1 {
		t.Fatalf("expected the healthy story to still cluster, got %+v", stats)
	}
}

func TestClusterRecentStories_ContentHashCollisionFoldsIn(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Satellite launch succeeds after delay", PubDate: base, PublisherID: 10, CategoryName: "us_science"},
		"satellite", "launch")
	store.addStory(Story{ID: 2, Title: "Satellite launch succeeds after delays", PubDate: base.Add(time.Hour), PublisherID: 20, CategoryName: "fr_science"},
		"satellite", "launch")

	// Pre-create the cluster another pass would have founded for the same
	// event: same dominant tags, same representative pub date.
	hash := clusterContentHash([]string{"launch", "satellite"}, base)
	store.clusters[101] = &Cluster{ID: 101, ContentHash: hash, RepresentativeStoryID: 999}
	store.nextClusterID = 101

	stats, err := testService(store).ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.clusters) != 1 {
		t.Fatalf("expected fold into the existing cluster, got %d clusters", len(store.clusters))
	}
	if stats.NewClusters != 0 {
		t.Fatalf("expected no founded cluster on hash collision, got %+v", stats)
	}
	cluster := store.clusterOf(t, 1)
	if cluster.ID != 101 {
		t.Fatalf("expected membership in pre-existing cluster 101, got %d", cluster.ID)
	}
	if cluster != store.clusterOf(t, 2) {
		t.Fatalf("expected both stories folded into the same cluster")
	}
	if event := store.events[1]; event.Decision != DecisionJoined {
		t.Fatalf("expected joined_existing on fold, got %q", event.Decision)
	}
}

func TestClusterRecentStories_WindowExcludesOldStories(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	old := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.addStory(Story{ID: 1, Title: "Old story outside the window", PubDate: old, PublisherID: 10, CategoryName: "us_news"},
		"old", "story")

	stats, err := testService(store).ClusterRecentStories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.StoriesProcessed != 0 {
		t.Fatalf("expected nothing selected outside the window, got %+v", stats)
	}
}

func TestPruneOldClusters(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := newMemStore()
	stale := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	store.clusters[1] = &Cluster{ID: 1, ContentHash: []byte("stale"), LastPubDate: stale}
	store.clusters[2] = &Cluster{ID: 2, ContentHash: []byte("fresh"), LastPubDate: fresh}
	store.memberships[11] = Membership{ClusterID: 1, StoryID: 11}
	store.joinOrder[1] = []int64{11}

	stats, err := testService(store).PruneOldClusters(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.ClustersDeleted != 1 {
		t.Fatalf("expected 1 cluster deleted, got %+v", stats)
	}
	if _, ok := store.clusters[1]; ok {
		t.Fatalf("expected stale cluster removed")
	}
	if _, ok := store.clusters[2]; !ok {
		t.Fatalf("expected fresh cluster kept")
	}
	if _, ok := store.memberships[11]; ok {
		t.Fatalf("expected cascade to remove membership rows")
	}
}
