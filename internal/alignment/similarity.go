package alignment

// Similarity computes text similarity between a and b: tokenize, expand
// with the synonym table, weight the Jaccard overlap by each shared
// token's IDF (from df, which may be nil to skip weighting), and add a
// small bonus when the raw token sets intersect exactly. Clamped to
// [0,1] (spec.md §4.B "Text similarity").
func Similarity(a, b string, df *DocFrequency) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	expandedA := expand(tokensA)
	expandedB := expand(tokensB)

	union := make(map[string]struct{}, len(expandedA)+len(expandedB))
	for t := range expandedA {
		union[t] = struct{}{}
	}
	for t := range expandedB {
		union[t] = struct{}{}
	}

	var intersectWeight, unionWeight float64
	for t := range union {
		weight := 1.0
		if df != nil {
			weight = df.idf(t)
		}
		unionWeight += weight
		_, inA := expandedA[t]
		_, inB := expandedB[t]
		if inA && inB {
			intersectWeight += weight
		}
	}

	score := 0.0
	if unionWeight > 0 {
		score = intersectWeight / unionWeight
	}

	rawA := set(tokensA...)
	rawB := set(tokensB...)
	exactMatches := 0
	for t := range rawA {
		if _, ok := rawB[t]; ok {
			exactMatches++
		}
	}
	if exactMatches > 0 {
		score += 0.05 * float64(exactMatches) / float64(len(union))
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
