package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"newsgrid.app/grid/internal/db"
	"newsgrid.app/grid/internal/globaltime"
	seedschema "newsgrid.app/grid/schema"
)

// Service loads story seed documents into the store. Seeding is
// idempotent: re-running the same file inserts nothing new.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

// Stats summarizes one seeding run.
type Stats struct {
	StoriesRead     int
	StoriesInserted int
	StoriesSkipped  int
	Errors          int
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

// SeedDocuments validates and inserts every story in raw, a JSON array
// of seed documents. Invalid or failing stories are counted and skipped;
// the rest of the file still loads.
func (s *Service) SeedDocuments(ctx context.Context, raw []byte) (Stats, error) {
	if s == nil || s.pool == nil {
		return Stats{}, fmt.Errorf("seed service is not initialized")
	}

	documents, err := splitSeedArray(raw)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{StoriesRead: len(documents)}
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		seed, err := seedschema.ValidateStorySeedPayload(doc)
		if err != nil {
			stats.Errors++
			s.logger.Warn().Err(err).Int("index", i).Msg("invalid seed document skipped")
			continue
		}

		inserted, err := s.seedOneTx(ctx, seed)
		if err != nil {
			stats.Errors++
			s.logger.Warn().Err(err).Int("index", i).Str("title", seed.Title).Msg("seed insert failed")
			continue
		}
		if inserted {
			stats.StoriesInserted++
		} else {
			stats.StoriesSkipped++
		}
	}

	s.logger.Info().
		Int("read", stats.StoriesRead).
		Int("inserted", stats.StoriesInserted).
		Int("skipped", stats.StoriesSkipped).
		Int("errors", stats.Errors).
		Msg("seeding completed")

	return stats, nil
}

func (s *Service) seedOneTx(ctx context.Context, seed *seedschema.StorySeed) (bool, error) {
	pubDate, err := seed.PubDateTime()
	if err != nil {
		return false, fmt.Errorf("parse pub_date: %w", err)
	}
	pubDate = pubDate.UTC()

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := globaltime.UTC()

	publisherID, err := upsertPublisher(ctx, tx, strings.TrimSpace(seed.Publisher), now)
	if err != nil {
		return false, fmt.Errorf("upsert publisher: %w", err)
	}

	var categoryID *int64
	if seed.Category != nil {
		id, err := upsertCategory(ctx, tx, strings.ToLower(strings.TrimSpace(*seed.Category)), now)
		if err != nil {
			return false, fmt.Errorf("upsert category: %w", err)
		}
		categoryID = &id
	}

	storyID, inserted, err := insertStory(ctx, tx, seed, publisherID, categoryID, pubDate, now)
	if err != nil {
		return false, fmt.Errorf("insert story: %w", err)
	}

	if inserted {
		if err := insertTags(ctx, tx, storyID, seed.Tags, now); err != nil {
			return false, fmt.Errorf("insert tags: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return inserted, nil
}

func upsertPublisher(ctx context.Context, tx db.Tx, name string, now time.Time) (int64, error) {
	const q = `
INSERT INTO news.publishers (name, created_at)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE
SET name = EXCLUDED.name
RETURNING publisher_id
`
	var id int64
	if err := tx.QueryRow(ctx, q, name, now).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func upsertCategory(ctx context.Context, tx db.Tx, name string, now time.Time) (int64, error) {
	const q = `
INSERT INTO news.categories (name, created_at)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE
SET name = EXCLUDED.name
RETURNING category_id
`
	var id int64
	if err := tx.QueryRow(ctx, q, name, now).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func insertStory(
	ctx context.Context,
	tx db.Tx,
	seed *seedschema.StorySeed,
	publisherID int64,
	categoryID *int64,
	pubDate time.Time,
	now time.Time,
) (int64, bool, error) {
	var (
		storyID int64
		err     error
	)

	if seed.StoryUUID != nil && strings.TrimSpace(*seed.StoryUUID) != "" {
		const q = `
INSERT INTO news.stories (story_uuid, title, pub_date, publisher_id, category_id, created_at, updated_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $6)
ON CONFLICT DO NOTHING
RETURNING story_id
`
		err = tx.QueryRow(ctx, q, strings.TrimSpace(*seed.StoryUUID), strings.TrimSpace(seed.Title), pubDate, publisherID, categoryID, now).Scan(&storyID)
	} else {
		const q = `
INSERT INTO news.stories (title, pub_date, publisher_id, category_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT DO NOTHING
RETURNING story_id
`
		err = tx.QueryRow(ctx, q, strings.TrimSpace(seed.Title), pubDate, publisherID, categoryID, now).Scan(&storyID)
	}

	if err != nil {
		if db.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return storyID, true, nil
}

func insertTags(ctx context.Context, tx db.Tx, storyID int64, tags []string, now time.Time) error {
	const q = `
INSERT INTO news.story_tags (story_id, tag, created_at)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, err := tx.Exec(ctx, q, storyID, normalized, now); err != nil {
			return fmt.Errorf("insert tag %q: %w", normalized, err)
		}
	}
	return nil
}

func splitSeedArray(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("seed file is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var documents []json.RawMessage
	if err := decoder.Decode(&documents); err != nil {
		return nil, fmt.Errorf("seed file must be a JSON array of stories: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("seed file contains trailing content")
	}
	return documents, nil
}
