package align

// similarity computes the Ratcliff-Obershelp ratio of two strings:
// twice the number of matching characters over the total length.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	m := matchingBlocks([]rune(a), []rune(b))
	return 2.0 * float64(m) / float64(len([]rune(a))+len([]rune(b)))
}

// matchingBlocks counts matched runes by recursively splitting around the
// longest common substring.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	matched := size
	matched += matchingBlocks(a[:ai], b[:bi])
	matched += matchingBlocks(a[ai+size:], b[bi+size:])
	return matched
}

func longestMatch(a, b []rune) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j] is the match length ending at a[i-1], b[j-1]
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					bestA = i - cur[j]
					bestB = j - cur[j]
				}
			}
		}
		prev = cur
	}
	return bestA, bestB, bestSize
}
