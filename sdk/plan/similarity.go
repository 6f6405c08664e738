package plan

// similarityThreshold is the minimum Ratcliff/Obershelp ratio for an
// FK stem to resolve to a candidate table.
const similarityThreshold = 0.7

// Ratio computes the Ratcliff/Obershelp similarity of two strings:
// twice the total size of the recursively matched blocks over the
// combined length.
func Ratio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2 * float64(matchedChars(a, b)) / float64(len(a)+len(b))
}

func matchedChars(a, b string) int {
	size, ai, bi := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchedChars(a[:ai], b[:bi]) + matchedChars(a[ai+size:], b[bi+size:])
}

// longestMatch finds the leftmost longest common substring of a and b.
func longestMatch(a, b string) (size, ai, bi int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if cur[j+1] > size {
				size = cur[j+1]
				ai = i + 1 - size
				bi = j + 1 - size
			}
		}
		prev, cur = cur, prev
	}
	return size, ai, bi
}

// BestMatch returns the candidate most similar to the FK stem,
// excluding the asking table itself. Resolution fails when no score
// reaches the threshold or when the top score is shared by more than
// one candidate.
func BestMatch(stem string, candidates []string, exclude string) (string, bool) {
	var (
		best      string
		bestScore float64
		bestCount int
	)
	for _, candidate := range candidates {
		if candidate == exclude {
			continue
		}
		score := Ratio(stem, candidate)
		switch {
		case score > bestScore:
			best, bestScore, bestCount = candidate, score, 1
		case score == bestScore && score > 0:
			bestCount++
		}
	}
	if bestScore < similarityThreshold || bestCount != 1 {
		return "", false
	}
	return best, true
}
