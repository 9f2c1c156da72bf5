package alignment

// domainHierarchy maps a parent knowledge domain to its children, used
// to find related (not merely overlapping) knowledge domains (spec.md
// §4.B "Knowledge verification"). Built-in, caller may extend via
// Scorer.AddDomainRelation.
var defaultDomainHierarchy = map[string][]string{
	"machine_learning": {"deep_learning", "neural_networks", "nlp", "computer_vision", "reinforcement_learning"},
	"data_science":      {"statistics", "data_analysis", "data_engineering", "machine_learning"},
	"software_engineering": {"backend", "frontend", "devops", "testing", "architecture"},
	"nlp":               {"tokenization", "sentiment_analysis", "machine_translation", "deep_learning"},
}

// defaultGoalCompatibility is the built-in goal-type compatibility
// matrix (spec.md §4.B "Goal alignment"); unknown pairs default to 0.5.
var defaultGoalCompatibility = map[string]float64{
	"assistance:education":  0.9,
	"education:assistance":  0.9,
	"assistance:analysis":   0.8,
	"analysis:assistance":   0.8,
	"speed:quality":         0.4,
	"quality:speed":         0.4,
	"cost_reduction:quality": 0.3,
	"quality:cost_reduction": 0.3,
	"security:speed":        0.4,
	"speed:security":        0.4,
	"exploration:exploitation": 0.5,
	"exploitation:exploration": 0.5,
}

// defaultAntonyms is a small built-in antonym table checked when
// looking for conflicting assumptions (spec.md §4.B "Assumptions").
var defaultAntonyms = map[string]string{
	"always":   "never",
	"never":    "always",
	"enabled":  "disabled",
	"disabled": "enabled",
	"online":   "offline",
	"offline":  "online",
	"public":   "private",
	"private":  "public",
	"trusted":  "untrusted",
	"untrusted": "trusted",
}

var negationWords = []string{"not", "never", "no", "cannot", "won't", "shouldn't", "isn't", "doesn't"}
