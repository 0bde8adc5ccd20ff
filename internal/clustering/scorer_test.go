package clustering

import (
	"math"
	"testing"
)

func TestTagSet_FoldsCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	set := TagSet([]string{"Ukraine", " ukraine ", "NATO", "", "  "})
	if len(set) != 2 {
		t.Fatalf("expected 2 distinct tags, got %d: %v", len(set), set)
	}
	if _, ok := set["ukraine"]; !ok {
		t.Fatalf("expected folded tag 'ukraine' in set")
	}
	if _, ok := set["nato"]; !ok {
		t.Fatalf("expected folded tag 'nato' in set")
	}
}

func TestTagOverlap(t *testing.T) {
	t.Parallel()

	a := TagSet([]string{"ukraine", "nato", "summit"})
	b := TagSet([]string{"NATO", "Summit", "brussels"})
	if overlap := TagOverlap(a, b); overlap != 2 {
		t.Fatalf("expected overlap 2, got %d", overlap)
	}
	if overlap := TagOverlap(a, nil); overlap != 0 {
		t.Fatalf("expected overlap 0 against empty set, got %d", overlap)
	}
}

func TestTitleSimilarity_Identical(t *testing.T) {
	t.Parallel()

	if score := TitleSimilarity("NATO summit opens", "nato summit opens"); score != 1 {
		t.Fatalf("expected 1.0 for case-insensitive identical titles, got %f", score)
	}
}

func TestTitleSimilarity_BothEmpty(t *testing.T) {
	t.Parallel()

	if score := TitleSimilarity("", ""); score != 1 {
		t.Fatalf("expected 1.0 for two empty titles, got %f", score)
	}
}

func TestTitleSimilarity_Disjoint(t *testing.T) {
	t.Parallel()

	if score := TitleSimilarity("abc", "xyz"); score != 0 {
		t.Fatalf("expected 0.0 for disjoint titles, got %f", score)
	}
}

func TestTitleSimilarity_PartialRatio(t *testing.T) {
	t.Parallel()

	// "abcd" vs "bcde": matching blocks cover "bcd" -> 2*3/8.
	score := TitleSimilarity("abcd", "bcde")
	if math.Abs(score-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", score)
	}
}

func TestTitleSimilarity_Symmetric(t *testing.T) {
	t.Parallel()

	left := TitleSimilarity("Acme launches orbital drone", "Acme launches drone platform")
	right := TitleSimilarity("Acme launches drone platform", "Acme launches orbital drone")
	if math.Abs(left-right) > 1e-12 {
		t.Fatalf("expected symmetric similarity, got %f vs %f", left, right)
	}
	if left <= 0 || left >= 1 {
		t.Fatalf("expected partial similarity in (0,1), got %f", left)
	}
}

func TestCombinedSimilarity_Weights(t *testing.T) {
	t.Parallel()

	// Identical titles, half-overlapping tags: 0.6*1 + 0.4*(1/3).
	score := CombinedSimilarity(
		"NATO summit opens",
		"NATO summit opens",
		[]string{"nato", "summit"},
		[]string{"nato", "brussels"},
	)
	want := 0.6 + 0.4/3
	if math.Abs(score-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, score)
	}
}

func TestCombinedSimilarity_EmptyTagUnion(t *testing.T) {
	t.Parallel()

	score := CombinedSimilarity("same title", "same title", nil, nil)
	if math.Abs(score-0.6) > 1e-9 {
		t.Fatalf("expected tag term to contribute 0 on empty union, got %f", score)
	}
}

func TestCombinedSimilarity_NearDuplicateTitlesClearThreshold(t *testing.T) {
	t.Parallel()

	score := CombinedSimilarity(
		"Earthquake strikes northern Japan, dozens injured",
		"Earthquake strikes northern Japan injuring dozens",
		[]string{"japan", "earthquake", "disaster"},
		[]string{"japan", "earthquake", "rescue"},
	)
	if score < 0.60 {
		t.Fatalf("expected near-duplicate coverage to clear 0.60, got %f", score)
	}
}

func TestLongestCommonBlock_LeftmostTie(t *testing.T) {
	t.Parallel()

	length, startA, startB := longestCommonBlock([]rune("abXab"), []rune("ab"))
	if length != 2 || startA != 0 || startB != 0 {
		t.Fatalf("expected leftmost block (2,0,0), got (%d,%d,%d)", length, startA, startB)
	}
}
