package db

import (
	"reflect"
	"testing"
)

func TestSplitDominantTags(t *testing.T) {
	t.Parallel()

	if got := splitDominantTags(""); got != nil {
		t.Fatalf("expected nil for empty column, got %v", got)
	}
	if got := splitDominantTags("  "); got != nil {
		t.Fatalf("expected nil for blank column, got %v", got)
	}

	got := splitDominantTags("nato, summit ,,ukraine")
	want := []string{"nato", "summit", "ukraine"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitDominantTags = %v, want %v", got, want)
	}
}

func TestJoinDominantTags_RoundTrip(t *testing.T) {
	t.Parallel()

	tags := []string{"nato", "summit", "ukraine"}
	if got := splitDominantTags(joinDominantTags(tags)); !reflect.DeepEqual(got, tags) {
		t.Fatalf("round trip = %v, want %v", got, tags)
	}
	if got := joinDominantTags(nil); got != "" {
		t.Fatalf("expected empty string for no tags, got %q", got)
	}
}
