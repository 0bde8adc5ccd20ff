package seedschema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidateStorySeedPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"story_uuid":"5d3e8f0a-8a44-4ed0-9c2b-0a6a1a2b3c4d",
		"title":"Earthquake strikes northern Japan",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire",
		"category":"jp_news",
		"tags":["japan","earthquake","disaster"]
	}`)

	seed, err := ValidateStorySeedPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if seed.Title != "Earthquake strikes northern Japan" {
		t.Fatalf("unexpected title: %q", seed.Title)
	}
	if seed.Publisher != "Example Wire" {
		t.Fatalf("unexpected publisher: %q", seed.Publisher)
	}

	pubDate, err := seed.PubDateTime()
	if err != nil {
		t.Fatalf("expected parseable pub_date, got: %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !pubDate.Equal(want) {
		t.Fatalf("unexpected pub_date: %v", pubDate)
	}
}

func TestValidateStorySeedPayload_MinimalValid(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Minimal story",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire"
	}`)

	seed, err := ValidateStorySeedPayload(payload)
	if err != nil {
		t.Fatalf("expected minimal payload to be valid, got error: %v", err)
	}
	if seed.Category != nil || len(seed.Tags) != 0 || seed.StoryUUID != nil {
		t.Fatalf("expected optional fields absent, got %+v", seed)
	}
}

func TestValidateStorySeedPayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"No publisher",
		"pub_date":"2026-03-10T09:00:00Z"
	}`)

	if _, err := ValidateStorySeedPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing publisher")
	}
}

func TestValidateStorySeedPayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"   ",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire"
	}`)

	_, err := ValidateStorySeedPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateStorySeedPayload_BadCategory(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Category without underscore",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire",
		"category":"news"
	}`)

	_, err := ValidateStorySeedPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for category without country prefix")
	}
	if !strings.Contains(err.Error(), "{country}_{section}") {
		t.Fatalf("expected category shape error, got: %v", err)
	}
}

func TestValidateStorySeedPayload_BadPubDate(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Bad date",
		"pub_date":"2026-03-10",
		"publisher":"Example Wire"
	}`)

	if _, err := ValidateStorySeedPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for non-RFC3339 pub_date")
	}
}

func TestValidateStorySeedPayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Extra field",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire",
		"body_text":"not part of the seed shape"
	}`)

	if _, err := ValidateStorySeedPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unknown field")
	}
}

func TestValidateStorySeedPayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{
		"title":"Trailing",
		"pub_date":"2026-03-10T09:00:00Z",
		"publisher":"Example Wire"
	}{}`)

	_, err := ValidateStorySeedPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
	if !strings.Contains(err.Error(), "trailing content") {
		t.Fatalf("expected trailing content error, got: %v", err)
	}
}
