package memory

// similarity is the token-overlap ratio between two normalized keys: shared
// token count divided by the larger token count. Keys whose token counts
// differ by more than half of the larger count are rejected outright, and
// keys of up to three tokens only match when their token sets are identical,
// because overlap ratios are unreliable on very short strings.
func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if float64(diff)/float64(max) > 0.5 {
		return 0
	}

	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range dedupe(a) {
		if _, ok := set[t]; ok {
			shared++
		}
	}

	if max <= 3 {
		if len(a) == len(b) && shared == max {
			return 1
		}
		return 0
	}

	return float64(shared) / float64(max)
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
