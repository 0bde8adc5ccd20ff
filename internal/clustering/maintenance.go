package clustering

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

const dominantTagCount = 5

// UnknownCountry is the sentinel for stories without a resolvable category.
const UnknownCountry = "XX"

// refreshClusterTx brings the cluster's aggregate fields in line with its
// current member set after a membership addition. Story count and the
// publication-date bounds advance incrementally; dominant tags and the
// country count are recomputed from the full member set.
func (e *Engine) refreshClusterTx(ctx context.Context, tx StoreTx, cluster *Cluster, added Story, now time.Time) error {
	cluster.StoryCount++
	if cluster.FirstPubDate.IsZero() || added.PubDate.Before(cluster.FirstPubDate) {
		cluster.FirstPubDate = added.PubDate
	}
	if added.PubDate.After(cluster.LastPubDate) {
		cluster.LastPubDate = added.PubDate
	}

	members, err := tx.MemberStories(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("load member stories cluster_id=%d: %w", cluster.ID, err)
	}

	countries := make(map[string]struct{}, len(members))
	var orderedTags []string
	tagCounts := make(map[string]int)
	for _, member := range members {
		countries[CountryCode(member.CategoryName)] = struct{}{}

		memberTags, err := tx.StoryTags(ctx, member.ID)
		if err != nil {
			return fmt.Errorf("load member tags story_id=%d: %w", member.ID, err)
		}
		for _, tag := range memberTags {
			folded := strings.ToLower(strings.TrimSpace(tag))
			if folded == "" {
				continue
			}
			if _, seen := tagCounts[folded]; !seen {
				orderedTags = append(orderedTags, folded)
			}
			tagCounts[folded]++
		}
	}

	cluster.CountryCount = len(countries)
	cluster.DominantTags = topTags(orderedTags, tagCounts, dominantTagCount)

	if err := tx.UpdateClusterAggregates(ctx, cluster, now); err != nil {
		return fmt.Errorf("update cluster aggregates cluster_id=%d: %w", cluster.ID, err)
	}
	return nil
}

// dominantTags ranks a raw tag list by frequency, ties broken by
// first-seen order, and keeps the top entries.
func dominantTags(tags []string) []string {
	var ordered []string
	counts := make(map[string]int, len(tags))
	for _, tag := range tags {
		folded := strings.ToLower(strings.TrimSpace(tag))
		if folded == "" {
			continue
		}
		if _, seen := counts[folded]; !seen {
			ordered = append(ordered, folded)
		}
		counts[folded]++
	}
	return topTags(ordered, counts, dominantTagCount)
}

func topTags(ordered []string, counts map[string]int, limit int) []string {
	ranked := append([]string(nil), ordered...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// CountryCode derives a two-letter country code from a category name of
// the form {country}_{section}; unresolvable categories map to "XX".
func CountryCode(categoryName string) string {
	trimmed := strings.TrimSpace(categoryName)
	runes := []rune(trimmed)
	if len(runes) < 2 {
		return UnknownCountry
	}
	code := []rune{unicode.ToUpper(runes[0]), unicode.ToUpper(runes[1])}
	if !unicode.IsLetter(code[0]) || !unicode.IsLetter(code[1]) {
		return UnknownCountry
	}
	return string(code)
}
