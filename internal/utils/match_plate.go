package utils

// Levenshtein считает редакционное расстояние (вставка, удаление, замена стоят 1)
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// BestMatch ищет в corpus строку с минимальным расстоянием до candidate.
// Возвращает её, только если расстояние не превышает maxDistance.
// При равенстве расстояний выбирается лексикографически меньшая строка.
func BestMatch(corpus []string, candidate string, maxDistance int) (string, bool) {
	if maxDistance < 0 {
		return "", false
	}

	best := ""
	bestDistance := -1
	for _, known := range corpus {
		d := Levenshtein(known, candidate)
		if bestDistance < 0 || d < bestDistance || (d == bestDistance && known < best) {
			best = known
			bestDistance = d
		}
	}

	if bestDistance < 0 || bestDistance > maxDistance {
		return "", false
	}
	return best, true
}
