// Package alignment implements the Scorer: five strategies that produce
// per-strategy AlignmentResults plus a weighted summary, grounded on
// original_source/mcp_server/xenocomm_mcp/alignment.py's AlignmentEngine,
// generalized with a domain hierarchy, synonym table, and IDF-weighted
// text similarity per the expanded design.
package alignment

import "github.com/xenocomm/coordinator/internal/model"

// Thresholds named per the expanded design's "CLARIFIED OPEN QUESTIONS":
// related-domain similarity, required-domain fuzzy match, terminology
// suggestion similarity, and negation-conflict similarity.
const (
	relatedDomainSimilarity    = 0.5
	requiredDomainFuzzyMatch   = 0.6
	terminologySuggestionSim   = 0.7
	negationConflictSimilarity = 0.5

	knowledgeAlignedThreshold    = 0.5
	knowledgePartialLowerBound   = 0.2
	knowledgePartialUpperBound   = 0.5

	goalConflictRatioThreshold   = 0.3
	goalAlignmentRatioThreshold  = 0.5
	goalPairAlignedThreshold     = 0.7

	terminologyMisalignedRatio = 0.3
	terminologyPartialRatio    = 0.1

	assumptionAlignedRatio  = 0.7
	assumptionPartialRatio  = 0.3

	contextSyncAlignedRatio = 0.8

	summaryAlignedThreshold = 0.75
	summaryPartialThreshold = 0.45
)

// statusScore maps a strategy's status to the numeric score used in the
// weighted summary (spec.md §4.B "Weighted summary").
var statusScore = map[model.AlignmentStatus]float64{
	model.StatusAligned:    1.0,
	model.StatusPartial:    0.5,
	model.StatusMisaligned: 0.0,
	model.StatusUnknown:    0.25,
}
