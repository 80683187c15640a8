// Package results collects per-file analyses and turns them into a ranked
// summary.
package results

import (
	"slices"
	"sort"
	"strconv"
	"sync"

	"resumerank/internal/types"
)

// DefaultTopN is the size of the highlighted top list
const DefaultTopN = 5

// Counts are the queue outcome totals a summary reports
type Counts struct {
	Total     int
	Succeeded int
	Failed    int
}

// FinalizeOptions controls Finalize
type FinalizeOptions struct {
	TopN int
	// Resolve drops results whose subject no longer exists when it returns false
	Resolve func(subjectID string) bool
	// FailedItems lists files that did not produce a result
	FailedItems []types.FailedResume
}

// Aggregator accumulates results for one submission cycle. It is safe for
// concurrent use.
type Aggregator struct {
	mu           sync.Mutex
	results      []types.AnalysisResult
	inconsistent int
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Reset discards everything collected so far
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = nil
	a.inconsistent = 0
}

// Add records one result
func (a *Aggregator) Add(result types.AnalysisResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
}

// NoteInconsistent counts a successful upload that produced no result
func (a *Aggregator) NoteInconsistent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inconsistent++
}

// Len returns the number of collected results
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Finalize ranks the collected results and builds the summary. Collected
// state is left untouched.
func (a *Aggregator) Finalize(counts Counts, opts FinalizeOptions) types.Summary {
	a.mu.Lock()
	collected := slices.Clone(a.results)
	inconsistent := a.inconsistent
	a.mu.Unlock()

	if opts.Resolve != nil {
		collected = slices.DeleteFunc(collected, func(r types.AnalysisResult) bool {
			return !opts.Resolve(r.SubjectID)
		})
	}

	summary := types.Summary{
		Total:        counts.Total,
		Succeeded:    counts.Succeeded,
		Failed:       counts.Failed,
		Inconsistent: inconsistent,
		FailedItems:  opts.FailedItems,
	}
	if summary.FailedItems == nil {
		summary.FailedItems = []types.FailedResume{}
	}

	if counts.Succeeded == 0 {
		summary.Ranked = []types.AnalysisResult{}
		summary.TopN = []types.AnalysisResult{}
		return summary
	}

	summary.Ranked = Rank(collected)
	summary.TopN = top(summary.Ranked, opts.TopN)
	return summary
}

// Rank orders results by fit, highest first, and assigns dense 1-based
// ranks. Equal fits keep submission order.
func Rank(in []types.AnalysisResult) []types.AnalysisResult {
	out := slices.Clone(in)
	if out == nil {
		out = []types.AnalysisResult{}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OverallFitPercentage > out[j].OverallFitPercentage
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func top(ranked []types.AnalysisResult, n int) []types.AnalysisResult {
	if n <= 0 {
		n = DefaultTopN
	}
	n = min(n, len(ranked))
	return slices.Clone(ranked[:n])
}

// FromBatch normalizes a legacy single-request response into a Summary.
// Results are re-ranked; the server's own ranks and top list are ignored.
func FromBatch(resp types.BatchResponse, topN int) types.Summary {
	results := make([]types.AnalysisResult, len(resp.Results))
	for i, r := range resp.Results {
		r.Sequence = uint64(i + 1)
		if r.SubjectID == "" {
			r.SubjectID = strconv.Itoa(i)
		}
		results[i] = r
	}

	succeeded := resp.Successful
	if succeeded == 0 {
		succeeded = len(results)
	}
	total := resp.TotalResumes
	if total == 0 {
		total = succeeded + max(resp.Failed, len(resp.FailedResumes))
	}
	failed := resp.Failed
	if failed == 0 {
		failed = len(resp.FailedResumes)
	}

	failedItems := resp.FailedResumes
	if failedItems == nil {
		failedItems = []types.FailedResume{}
	}

	summary := types.Summary{
		Total:       total,
		Succeeded:   succeeded,
		Failed:      failed,
		FailedItems: failedItems,
		Ranked:      []types.AnalysisResult{},
		TopN:        []types.AnalysisResult{},
	}
	if succeeded == 0 {
		return summary
	}

	summary.Ranked = Rank(results)
	summary.TopN = top(summary.Ranked, topN)
	return summary
}
