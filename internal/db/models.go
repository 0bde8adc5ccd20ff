package db

import "time"

// Publisher maps news.publishers. Owned by the ingestion pipeline.
type Publisher struct {
	PublisherID int64     `gorm:"column:publisher_id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:text;not null;unique"`
	FeedURL     *string   `gorm:"column:feed_url;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Publisher) TableName() string { return "news.publishers" }

// Category maps news.categories. Names follow the {country}_{section}
// convention, e.g. us_politics.
type Category struct {
	CategoryID int64     `gorm:"column:category_id;primaryKey;autoIncrement"`
	Name       string    `gorm:"column:name;type:text;not null;unique"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Category) TableName() string { return "news.categories" }

// Story maps news.stories. Read-only to the clustering core.
type Story struct {
	StoryID     int64     `gorm:"column:story_id;primaryKey;autoIncrement"`
	StoryUUID   string    `gorm:"column:story_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Title       string    `gorm:"column:title;type:text;not null"`
	PubDate     time.Time `gorm:"column:pub_date;type:timestamptz;not null;index"`
	PublisherID int64     `gorm:"column:publisher_id;type:bigint;not null;index"`
	CategoryID  *int64    `gorm:"column:category_id;type:bigint;index"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now();index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Story) TableName() string { return "news.stories" }

// StoryTag maps news.story_tags: one row per (story, tag) pair, tags
// lower-cased at write time.
type StoryTag struct {
	StoryID   int64     `gorm:"column:story_id;type:bigint;primaryKey"`
	Tag       string    `gorm:"column:tag;type:text;primaryKey;index"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StoryTag) TableName() string { return "news.story_tags" }

// StoryCluster maps news.story_clusters: one hypothesized real-world
// event. The content hash is the natural key guarding re-creation.
type StoryCluster struct {
	ClusterID             int64     `gorm:"column:cluster_id;primaryKey;autoIncrement"`
	ClusterUUID           string    `gorm:"column:cluster_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ContentHash           []byte    `gorm:"column:content_hash;type:bytea;not null;unique"`
	RepresentativeStoryID int64     `gorm:"column:representative_story_id;type:bigint;not null"`
	DominantTags          string    `gorm:"column:dominant_tags;type:text;not null;default:''"`
	StoryCount            int       `gorm:"column:story_count;type:integer;not null;default:0"`
	CountryCount          int       `gorm:"column:country_count;type:integer;not null;default:0"`
	FirstPubDate          time.Time `gorm:"column:first_pub_date;type:timestamptz;not null"`
	LastPubDate           time.Time `gorm:"column:last_pub_date;type:timestamptz;not null;index"`
	CreatedAt             time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt             time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (StoryCluster) TableName() string { return "news.story_clusters" }

// StoryClusterMember maps news.story_cluster_members. The story_id unique
// index spans the whole table: a story belongs to at most one cluster.
type StoryClusterMember struct {
	ClusterID  int64     `gorm:"column:cluster_id;type:bigint;primaryKey"`
	StoryID    int64     `gorm:"column:story_id;type:bigint;primaryKey;unique"`
	Similarity float64   `gorm:"column:similarity;type:double precision;not null"`
	JoinedAt   time.Time `gorm:"column:joined_at;type:timestamptz;not null;default:now()"`
}

func (StoryClusterMember) TableName() string { return "news.story_cluster_members" }

// ClusterEvent maps news.cluster_events: the assignment ledger, one row
// per successful membership decision.
type ClusterEvent struct {
	EventID   int64     `gorm:"column:event_id;primaryKey;autoIncrement"`
	StoryID   int64     `gorm:"column:story_id;type:bigint;not null;unique"`
	ClusterID int64     `gorm:"column:cluster_id;type:bigint;not null;index"`
	Decision  string    `gorm:"column:decision;type:text;not null"`
	Score     float64   `gorm:"column:score;type:double precision;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now();index"`
}

func (ClusterEvent) TableName() string { return "news.cluster_events" }

func autoMigrateModels() []any {
	return []any{
		&Publisher{},
		&Category{},
		&Story{},
		&StoryTag{},
		&StoryCluster{},
		&StoryClusterMember{},
		&ClusterEvent{},
	}
}
