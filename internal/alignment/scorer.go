package alignment

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// Scorer implements the five alignment strategies plus the weighted
// summary. It holds only the extensible tables (domain hierarchy, goal
// compatibility, document frequency) — agent descriptors themselves
// belong to the Orchestrator's registry.
type Scorer struct {
	mu sync.Mutex

	domainHierarchy map[string][]string
	goalCompat      map[string]float64
	weights         map[string]float64
	docFreq         *DocFrequency
}

// Weights configures the five strategy weights used by the summary;
// must sum to 1.0 (spec.md §4.B).
type Weights struct {
	Knowledge   float64
	Goals       float64
	Terminology float64
	Assumptions float64
	Context     float64
}

// New constructs a Scorer with the built-in domain hierarchy and goal
// compatibility tables, and the given summary weights.
func New(w Weights) (*Scorer, error) {
	sum := w.Knowledge + w.Goals + w.Terminology + w.Assumptions + w.Context
	if math.Abs(sum-1.0) > 1e-6 {
		return nil, &xerrors.CoordinationError{
			Op: "alignment.New", Kind: "alignment",
			Err: fmt.Errorf("%w: weights sum to %.4f, want 1.0", xerrors.ErrValidation, sum),
		}
	}

	hierarchy := make(map[string][]string, len(defaultDomainHierarchy))
	for k, v := range defaultDomainHierarchy {
		hierarchy[k] = append([]string(nil), v...)
	}
	compat := make(map[string]float64, len(defaultGoalCompatibility))
	for k, v := range defaultGoalCompatibility {
		compat[k] = v
	}

	return &Scorer{
		domainHierarchy: hierarchy,
		goalCompat:      compat,
		weights: map[string]float64{
			"knowledge": w.Knowledge, "goals": w.Goals, "terminology": w.Terminology,
			"assumptions": w.Assumptions, "context": w.Context,
		},
		docFreq: NewDocFrequency(),
	}, nil
}

// ObserveCorpus registers an agent's terminology/assumption text into the
// shared document-frequency table, so later similarity computations are
// IDF-weighted against the full registered population (spec.md §4.B
// "Text similarity").
func (s *Scorer) ObserveCorpus(a model.AgentDescriptor) {
	for _, def := range a.Terminology {
		s.docFreq.Observe(def)
	}
	for _, assumption := range a.Assumptions {
		s.docFreq.Observe(assumption)
	}
}

// AddDomainRelation extends the built-in hierarchy with a parent→child
// relation.
func (s *Scorer) AddDomainRelation(parent string, children ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domainHierarchy[parent] = append(s.domainHierarchy[parent], children...)
}

// AddGoalCompatibility registers or overrides a goalTypeA:goalTypeB
// compatibility score.
func (s *Scorer) AddGoalCompatibility(goalTypeA, goalTypeB string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalCompat[goalTypeA+":"+goalTypeB] = score
}

// domainSimilarity scores how related two distinct knowledge domains
// are: 1.0 if one is a hierarchy-listed child of the other, else a
// text-token fallback similarity of the domain names themselves.
func (s *Scorer) domainSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	s.mu.Lock()
	children := s.domainHierarchy[a]
	reverseChildren := s.domainHierarchy[b]
	s.mu.Unlock()

	for _, c := range children {
		if c == b {
			return 1.0
		}
	}
	for _, c := range reverseChildren {
		if c == a {
			return 1.0
		}
	}
	return Similarity(strings.ReplaceAll(a, "_", " "), strings.ReplaceAll(b, "_", " "), nil)
}

// VerifyKnowledge computes the knowledge-verification strategy result
// (spec.md §4.B "Knowledge verification").
func (s *Scorer) VerifyKnowledge(a, b model.AgentDescriptor, requiredDomains []string) model.AlignmentResult {
	domainsA := toSet(a.KnowledgeDomains)
	domainsB := toSet(b.KnowledgeDomains)

	shared := intersect(domainsA, domainsB)
	onlyA := difference(domainsA, domainsB)
	onlyB := difference(domainsB, domainsA)
	all := union(domainsA, domainsB)

	overlapRatio := 0.0
	if len(all) > 0 {
		overlapRatio = float64(len(shared)) / float64(len(all))
	}

	// Related (non-overlapping) pairs add a capped bonus.
	var similaritySum float64
	for da := range onlyA {
		for db := range onlyB {
			sim := s.domainSimilarity(da, db)
			if sim >= relatedDomainSimilarity {
				similaritySum += sim
			}
		}
	}
	bonus := similaritySum
	if bonus > 1.0-overlapRatio {
		bonus = 1.0 - overlapRatio
	}
	overlapRatio += bonus
	if overlapRatio > 1.0 {
		overlapRatio = 1.0
	}

	var missingA, missingB []string
	if len(requiredDomains) > 0 {
		for _, domain := range requiredDomains {
			if !coversDomain(domain, domainsA, s) {
				missingA = append(missingA, domain)
			}
			if !coversDomain(domain, domainsB, s) {
				missingB = append(missingB, domain)
			}
		}
	}

	expertiseGap := make(map[string]float64)
	for d := range shared {
		la, okA := a.ExpertiseLevel[d]
		lb, okB := b.ExpertiseLevel[d]
		if okA && okB {
			expertiseGap[d] = math.Abs(la - lb)
		}
	}

	var status model.AlignmentStatus
	switch {
	case len(missingA) > 0 && len(missingB) > 0:
		status = model.StatusMisaligned
	case len(missingA) > 0 || len(missingB) > 0:
		status = model.StatusPartial
	case overlapRatio > knowledgeAlignedThreshold:
		status = model.StatusAligned
	case overlapRatio > knowledgePartialLowerBound:
		status = model.StatusPartial
	default:
		status = model.StatusMisaligned
	}

	var recs []string
	if len(missingA) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should acquire knowledge in: %s", a.AgentID, strings.Join(missingA, ", ")))
	}
	if len(missingB) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should acquire knowledge in: %s", b.AgentID, strings.Join(missingB, ", ")))
	}
	if overlapRatio < 0.3 {
		recs = append(recs, "consider a translation/mediation layer for cross-domain communication")
	}

	return model.AlignmentResult{
		Status:     status,
		Confidence: overlapRatio,
		Details: map[string]interface{}{
			"shared_domains":        sortedKeys(shared),
			"agent_a_only":          sortedKeys(onlyA),
			"agent_b_only":          sortedKeys(onlyB),
			"overlap_ratio":         overlapRatio,
			"missing_required_a":    missingA,
			"missing_required_b":    missingB,
			"expertise_gap":         expertiseGap,
		},
		Recommendations: recs,
		StrategyName:    "knowledge",
		Weight:          s.weights["knowledge"],
	}
}

func coversDomain(domain string, owned map[string]struct{}, s *Scorer) bool {
	if _, ok := owned[domain]; ok {
		return true
	}
	for d := range owned {
		if s.domainSimilarity(domain, d) >= requiredDomainFuzzyMatch {
			return true
		}
	}
	return false
}

// VerifyGoals computes the goal-alignment strategy result (spec.md
// §4.B "Goal alignment").
func (s *Scorer) VerifyGoals(a, b model.AgentDescriptor) model.AlignmentResult {
	if len(a.Goals) == 0 || len(b.Goals) == 0 {
		return model.AlignmentResult{
			Status:     model.StatusUnknown,
			Confidence: 0.0,
			Details:    map[string]interface{}{"reason": "one or both agents have no declared goals"},
			Recommendations: []string{
				"both agents should declare their goals for alignment verification",
			},
			StrategyName: "goals",
			Weight:       s.weights["goals"],
		}
	}

	type pairResult struct {
		goalA, goalB model.Goal
		compat       float64
	}
	var conflicts, alignments []pairResult

	s.mu.Lock()
	compatTable := s.goalCompat
	s.mu.Unlock()

	for _, ga := range a.Goals {
		for _, gb := range b.Goals {
			compat, ok := compatTable[ga.Type+":"+gb.Type]
			if !ok {
				compat, ok = compatTable[gb.Type+":"+ga.Type]
			}
			if !ok {
				compat = 0.5
			}
			if compat < goalConflictRatioThreshold {
				conflicts = append(conflicts, pairResult{ga, gb, compat})
			} else if compat > goalPairAlignedThreshold {
				alignments = append(alignments, pairResult{ga, gb, compat})
			}
		}
	}

	totalPairs := len(a.Goals) * len(b.Goals)
	conflictRatio := 0.0
	alignmentRatio := 0.0
	if totalPairs > 0 {
		conflictRatio = float64(len(conflicts)) / float64(totalPairs)
		alignmentRatio = float64(len(alignments)) / float64(totalPairs)
	}

	var status model.AlignmentStatus
	switch {
	case conflictRatio > goalConflictRatioThreshold:
		status = model.StatusMisaligned
	case alignmentRatio > goalAlignmentRatioThreshold:
		status = model.StatusAligned
	default:
		status = model.StatusPartial
	}

	var recs []string
	if len(conflicts) > 0 {
		recs = append(recs, "resolve goal conflicts before proceeding with collaboration")
		for i, c := range conflicts {
			if i >= 3 {
				break
			}
			recs = append(recs, fmt.Sprintf("conflict: %s vs %s", describeGoal(c.goalA), describeGoal(c.goalB)))
		}
	}

	conflictDetails := make([]map[string]interface{}, 0, len(conflicts))
	for _, c := range conflicts {
		conflictDetails = append(conflictDetails, map[string]interface{}{"goal_a": c.goalA, "goal_b": c.goalB, "compatibility": c.compat})
	}
	alignmentDetails := make([]map[string]interface{}, 0, len(alignments))
	for _, c := range alignments {
		alignmentDetails = append(alignmentDetails, map[string]interface{}{"goal_a": c.goalA, "goal_b": c.goalB, "compatibility": c.compat})
	}

	return model.AlignmentResult{
		Status:     status,
		Confidence: alignmentRatio,
		Details: map[string]interface{}{
			"conflicts":       conflictDetails,
			"alignments":      alignmentDetails,
			"conflict_ratio":  conflictRatio,
			"alignment_ratio": alignmentRatio,
		},
		Recommendations: recs,
		StrategyName:    "goals",
		Weight:          s.weights["goals"],
	}
}

func describeGoal(g model.Goal) string {
	if g.Description != "" {
		return g.Description
	}
	return g.Type
}

// AlignTerminology computes the terminology strategy result (spec.md
// §4.B "Terminology").
func (s *Scorer) AlignTerminology(a, b model.AgentDescriptor) model.AlignmentResult {
	termsA := termSet(a.Terminology)
	termsB := termSet(b.Terminology)

	shared := intersect(termsA, termsB)
	uniqueA := difference(termsA, termsB)
	uniqueB := difference(termsB, termsA)

	var conflicts []map[string]interface{}
	for term := range shared {
		defA := a.Terminology[term]
		defB := b.Terminology[term]
		if !strings.EqualFold(defA, defB) {
			conflicts = append(conflicts, map[string]interface{}{"term": term, "definition_a": defA, "definition_b": defB})
		}
	}

	suggested := make(map[string]string)
	for termA := range uniqueA {
		defA := a.Terminology[termA]
		for termB, defB := range b.Terminology {
			if Similarity(defA, defB, s.docFreq) > terminologySuggestionSim {
				suggested[termA] = termB
				break
			}
		}
	}

	conflictRatio := 0.0
	if len(shared) > 0 {
		conflictRatio = float64(len(conflicts)) / float64(len(shared))
	}

	var status model.AlignmentStatus
	switch {
	case conflictRatio > terminologyMisalignedRatio:
		status = model.StatusMisaligned
	case conflictRatio > terminologyPartialRatio:
		status = model.StatusPartial
	default:
		status = model.StatusAligned
	}

	var recs []string
	if len(conflicts) > 0 {
		recs = append(recs, "resolve terminology conflicts before communication")
	}
	if len(suggested) > 0 {
		recs = append(recs, fmt.Sprintf("suggested term mappings: %v", suggested))
	}
	if len(uniqueA) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should learn terms: %s", b.AgentID, strings.Join(limitList(sortedKeys(uniqueA), 5), ", ")))
	}
	if len(uniqueB) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should learn terms: %s", a.AgentID, strings.Join(limitList(sortedKeys(uniqueB), 5), ", ")))
	}

	return model.AlignmentResult{
		Status:     status,
		Confidence: 1.0 - conflictRatio,
		Details: map[string]interface{}{
			"shared_terms":        sortedKeys(shared),
			"unique_to_a":         sortedKeys(uniqueA),
			"unique_to_b":         sortedKeys(uniqueB),
			"conflicts":           conflicts,
			"suggested_mappings":  suggested,
		},
		Recommendations: recs,
		StrategyName:    "terminology",
		Weight:          s.weights["terminology"],
	}
}

// VerifyAssumptions computes the assumptions strategy result (spec.md
// §4.B "Assumptions").
func (s *Scorer) VerifyAssumptions(a, b model.AgentDescriptor) model.AlignmentResult {
	assumptionsA := toSet(a.Assumptions)
	assumptionsB := toSet(b.Assumptions)

	shared := intersect(assumptionsA, assumptionsB)
	uniqueA := difference(assumptionsA, assumptionsB)
	uniqueB := difference(assumptionsB, assumptionsA)
	all := union(assumptionsA, assumptionsB)

	alignmentRatio := 1.0
	if len(all) > 0 {
		alignmentRatio = float64(len(shared)) / float64(len(all))
	}

	var conflicts []map[string]interface{}
	for ua := range uniqueA {
		for ub := range uniqueB {
			if s.assumptionsConflict(ua, ub) {
				conflicts = append(conflicts, map[string]interface{}{"assumption_a": ua, "assumption_b": ub})
			}
		}
	}

	var status model.AlignmentStatus
	switch {
	case len(conflicts) > 0:
		status = model.StatusMisaligned
	case alignmentRatio > assumptionAlignedRatio:
		status = model.StatusAligned
	case alignmentRatio > assumptionPartialRatio:
		status = model.StatusPartial
	default:
		status = model.StatusMisaligned
	}

	var recs []string
	if len(uniqueA) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should communicate assumptions: %s", a.AgentID, strings.Join(limitList(sortedKeys(uniqueA), 3), ", ")))
	}
	if len(uniqueB) > 0 {
		recs = append(recs, fmt.Sprintf("agent %s should communicate assumptions: %s", b.AgentID, strings.Join(limitList(sortedKeys(uniqueB), 3), ", ")))
	}
	if len(conflicts) > 0 {
		recs = append(recs, "critical: resolve conflicting assumptions before proceeding")
	}

	return model.AlignmentResult{
		Status:     status,
		Confidence: alignmentRatio,
		Details: map[string]interface{}{
			"shared_assumptions": sortedKeys(shared),
			"unique_to_a":        sortedKeys(uniqueA),
			"unique_to_b":        sortedKeys(uniqueB),
			"conflicts":          conflicts,
		},
		Recommendations: recs,
		StrategyName:    "assumptions",
		Weight:          s.weights["assumptions"],
	}
}

// assumptionsConflict checks antonym pairs and negation patterns: if one
// assumption contains a negation word the other lacks, strip it and
// compare similarity to the un-negated form (spec.md §4.B "Assumptions").
func (s *Scorer) assumptionsConflict(a, b string) bool {
	lowerA := strings.ToLower(a)
	lowerB := strings.ToLower(b)

	for word, opposite := range defaultAntonyms {
		if strings.Contains(lowerA, word) && strings.Contains(lowerB, opposite) {
			return true
		}
	}

	for _, neg := range negationWords {
		if strings.Contains(lowerA, neg) && !strings.Contains(lowerB, neg) {
			if Similarity(strings.ReplaceAll(lowerA, neg, ""), lowerB, s.docFreq) > negationConflictSimilarity {
				return true
			}
		}
		if strings.Contains(lowerB, neg) && !strings.Contains(lowerA, neg) {
			if Similarity(strings.ReplaceAll(lowerB, neg, ""), lowerA, s.docFreq) > negationConflictSimilarity {
				return true
			}
		}
	}
	return false
}

// SyncContext computes the context-synchronization strategy result
// (spec.md §4.B "Context sync").
func (s *Scorer) SyncContext(a, b model.AgentDescriptor, requiredParams []string) model.AlignmentResult {
	paramsA := a.ContextParams
	paramsB := b.ContextParams

	allKeys := make(map[string]struct{})
	for k := range paramsA {
		allKeys[k] = struct{}{}
	}
	for k := range paramsB {
		allKeys[k] = struct{}{}
	}

	var mismatches []map[string]interface{}
	var matched, missingA, missingB []string

	for k := range allKeys {
		valA, okA := paramsA[k]
		valB, okB := paramsB[k]
		switch {
		case !okA:
			missingA = append(missingA, k)
		case !okB:
			missingB = append(missingB, k)
		case fmt.Sprintf("%v", valA) != fmt.Sprintf("%v", valB):
			mismatches = append(mismatches, map[string]interface{}{"param": k, "value_a": valA, "value_b": valB})
		default:
			matched = append(matched, k)
		}
	}

	var requiredMissing []string
	for _, p := range requiredParams {
		_, inA := paramsA[p]
		_, inB := paramsB[p]
		if !inA || !inB {
			requiredMissing = append(requiredMissing, p)
		}
	}

	syncRatio := 1.0
	if len(allKeys) > 0 {
		syncRatio = float64(len(matched)) / float64(len(allKeys))
	}

	var status model.AlignmentStatus
	switch {
	case len(requiredMissing) > 0:
		status = model.StatusMisaligned
	case len(mismatches) > 0:
		status = model.StatusPartial
	case syncRatio > contextSyncAlignedRatio:
		status = model.StatusAligned
	default:
		status = model.StatusPartial
	}

	var recs []string
	if len(requiredMissing) > 0 {
		recs = append(recs, fmt.Sprintf("required parameters missing: %s", strings.Join(requiredMissing, ", ")))
	}
	for i, m := range mismatches {
		if i >= 3 {
			break
		}
		recs = append(recs, fmt.Sprintf("sync %v: A=%v, B=%v", m["param"], m["value_a"], m["value_b"]))
	}

	sort.Strings(matched)
	sort.Strings(missingA)
	sort.Strings(missingB)

	return model.AlignmentResult{
		Status:     status,
		Confidence: syncRatio,
		Details: map[string]interface{}{
			"matched_params":    matched,
			"mismatched_params": mismatches,
			"missing_in_a":      missingA,
			"missing_in_b":      missingB,
			"required_missing":  requiredMissing,
		},
		Recommendations: recs,
		StrategyName:    "context",
		Weight:          s.weights["context"],
	}
}

// FullAlignmentCheck runs all five strategies and computes the weighted
// summary (spec.md §4.B "Weighted summary").
func (s *Scorer) FullAlignmentCheck(a, b model.AgentDescriptor, requiredDomains, requiredParams []string) model.FullAlignmentCheck {
	knowledge := s.VerifyKnowledge(a, b, requiredDomains)
	goals := s.VerifyGoals(a, b)
	terminology := s.AlignTerminology(a, b)
	assumptions := s.VerifyAssumptions(a, b)
	context := s.SyncContext(a, b, requiredParams)

	results := []model.AlignmentResult{knowledge, goals, terminology, assumptions, context}

	var weightedSum, totalWeight float64
	aligned, partial, misaligned := 0, 0, 0
	for _, r := range results {
		score := 0.6*statusScore[r.Status] + 0.4*r.Confidence
		weightedSum += score * r.Weight
		totalWeight += r.Weight
		switch r.Status {
		case model.StatusAligned:
			aligned++
		case model.StatusPartial:
			partial++
		case model.StatusMisaligned:
			misaligned++
		}
	}

	weighted := 0.0
	if totalWeight > 0 {
		weighted = weightedSum / totalWeight
	}

	var overall model.AlignmentStatus
	switch {
	case weighted >= summaryAlignedThreshold:
		overall = model.StatusAligned
	case weighted >= summaryPartialThreshold:
		overall = model.StatusPartial
	default:
		overall = model.StatusMisaligned
	}

	return model.FullAlignmentCheck{
		Knowledge:   knowledge,
		Goals:       goals,
		Terminology: terminology,
		Assumptions: assumptions,
		Context:     context,
		Summary: model.AlignmentSummary{
			Status:          overall,
			WeightedScore:   weighted,
			AlignedCount:    aligned,
			PartialCount:    partial,
			MisalignedCount: misaligned,
		},
	}
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, i := range items {
		m[i] = struct{}{}
	}
	return m
}

func termSet(m map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func difference(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func limitList(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
