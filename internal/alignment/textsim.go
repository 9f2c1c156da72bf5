package alignment

import (
	"math"
	"strings"
	"sync"
)

// stopwords is a small fixed English stopword list dropped during
// tokenization, generalizing the original's bare text_a.lower().split().
var stopwords = set(
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"to", "of", "in", "on", "at", "by", "for", "with", "and", "or", "but",
	"not", "no", "if", "then", "than", "this", "that", "these", "those",
	"it", "its", "as", "from", "into", "over", "under", "about",
)

// synonyms is a small built-in expansion table; tokens map to their
// canonical cluster so near-synonymous terms overlap under Jaccard.
var synonyms = map[string][]string{
	"fast":     {"quick", "rapid", "speedy"},
	"quick":    {"fast", "rapid", "speedy"},
	"accurate": {"precise", "correct"},
	"precise":  {"accurate", "correct"},
	"large":    {"big", "huge"},
	"big":      {"large", "huge"},
	"small":    {"tiny", "little"},
	"error":    {"failure", "fault", "bug"},
	"failure":  {"error", "fault", "bug"},
	"secure":   {"safe", "protected"},
	"safe":     {"secure", "protected"},
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func expand(tokens []string) map[string]struct{} {
	expanded := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		expanded[t] = struct{}{}
		for _, syn := range synonyms[t] {
			expanded[syn] = struct{}{}
		}
	}
	return expanded
}

// DocFrequency tracks per-token document frequency across every
// registered agent, used to IDF-weight text similarity so common words
// contribute less than distinctive ones (spec.md §4.B "Text similarity").
type DocFrequency struct {
	mu        sync.Mutex
	docFreq   map[string]int
	totalDocs int
}

// NewDocFrequency constructs an empty corpus-wide frequency table.
func NewDocFrequency() *DocFrequency {
	return &DocFrequency{docFreq: make(map[string]int)}
}

// Observe registers one document's (e.g. one agent's terminology
// corpus) distinct tokens, incrementing their document frequency.
func (d *DocFrequency) Observe(text string) {
	tokens := tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalDocs++
	for t := range seen {
		d.docFreq[t]++
	}
}

func (d *DocFrequency) idf(token string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.totalDocs == 0 {
		return 1.0
	}
	df := d.docFreq[token]
	if df == 0 {
		df = 1
	}
	// Smoothed IDF, clamped to a sane [0.5, 3.0] contribution band so a
	// single rare token cannot dominate the similarity score.
	idf := 1.0 + math.Log(float64(d.totalDocs)/float64(df))
	if idf < 0.5 {
		idf = 0.5
	}
	if idf > 3.0 {
		idf = 3.0
	}
	return idf
}
