package clustering

import "strings"

const (
	titleWeight = 0.6
	tagWeight   = 0.4
)

// TagSet folds raw tag strings into a lower-cased set.
func TagSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		folded := strings.ToLower(strings.TrimSpace(tag))
		if folded == "" {
			continue
		}
		set[folded] = struct{}{}
	}
	return set
}

// TagOverlap returns the size of the intersection of two tag sets.
func TagOverlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	overlap := 0
	for tag := range a {
		if _, ok := b[tag]; ok {
			overlap++
		}
	}
	return overlap
}

// TitleSimilarity is a case-insensitive sequence similarity ratio in [0,1]
// computed as 2*M/T, where M is the total length of the longest matching
// blocks between the two titles and T the combined length.
func TitleSimilarity(a, b string) float64 {
	left := []rune(strings.ToLower(a))
	right := []rune(strings.ToLower(b))

	total := len(left) + len(right)
	if total == 0 {
		return 1
	}

	matched := matchingLength(left, right)
	return 2 * float64(matched) / float64(total)
}

// CombinedSimilarity is the weighted event-likeness score:
// 0.6 * title similarity + 0.4 * tag Jaccard. The tag term is 0 when the
// union of the two tag sets is empty.
func CombinedSimilarity(titleA, titleB string, tagsA, tagsB []string) float64 {
	setA := TagSet(tagsA)
	setB := TagSet(tagsB)

	tagScore := 0.0
	intersection := TagOverlap(setA, setB)
	union := len(setA) + len(setB) - intersection
	if union > 0 {
		tagScore = float64(intersection) / float64(union)
	}

	return titleWeight*TitleSimilarity(titleA, titleB) + tagWeight*tagScore
}

// matchingLength sums the lengths of the matching blocks found by
// recursively splitting around the longest common substring, taking the
// leftmost occurrence on ties so results are deterministic.
func matchingLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	bestLen, bestA, bestB := longestCommonBlock(a, b)
	if bestLen == 0 {
		return 0
	}

	total := bestLen
	total += matchingLength(a[:bestA], b[:bestB])
	total += matchingLength(a[bestA+bestLen:], b[bestB+bestLen:])
	return total
}

func longestCommonBlock(a, b []rune) (length, startA, startB int) {
	// lengths[j] holds the common-suffix length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prevDiagonal := 0
		for j := 1; j <= len(b); j++ {
			current := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prevDiagonal + 1
				if lengths[j] > length {
					length = lengths[j]
					startA = i - length
					startB = j - length
				}
			} else {
				lengths[j] = 0
			}
			prevDiagonal = current
		}
	}
	return length, startA, startB
}
