package results

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/types"
)

func result(id string, seq uint64, fit float64) types.AnalysisResult {
	return types.AnalysisResult{SubjectID: id, Sequence: seq, OverallFitPercentage: fit}
}

func fits(rs []types.AnalysisResult) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.OverallFitPercentage
	}
	return out
}

func TestRank_StableDescending(t *testing.T) {
	// arrival order differs from submission order
	in := []types.AnalysisResult{
		result("c", 3, 90),
		result("a", 1, 40),
		result("d", 4, 10),
		result("b", 2, 90),
	}

	ranked := Rank(in)

	assert.Equal(t, []float64{90, 90, 40, 10}, fits(ranked))
	assert.Equal(t, "b", ranked[0].SubjectID, "tie keeps submission order")
	assert.Equal(t, "c", ranked[1].SubjectID)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, 0, in[0].Rank, "input is not mutated")
}

func TestRank_Empty(t *testing.T) {
	assert.Equal(t, []types.AnalysisResult{}, Rank(nil))
}

func TestAggregator_Finalize(t *testing.T) {
	tests := []struct {
		name      string
		fits      []float64
		counts    Counts
		topN      int
		wantTop   int
		wantEmpty bool
	}{
		{"top five of seven", []float64{10, 20, 30, 40, 50, 60, 70}, Counts{Total: 7, Succeeded: 7}, 0, 5, false},
		{"custom top", []float64{10, 20, 30}, Counts{Total: 3, Succeeded: 3}, 2, 2, false},
		{"fewer than top", []float64{10, 20}, Counts{Total: 4, Succeeded: 2, Failed: 2}, 5, 2, false},
		{"nothing succeeded", nil, Counts{Total: 2, Failed: 2}, 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			for i, fit := range tt.fits {
				agg.Add(result(fmt.Sprint(i), uint64(i+1), fit))
			}

			s := agg.Finalize(tt.counts, FinalizeOptions{TopN: tt.topN})

			assert.Equal(t, tt.counts.Total, s.Total)
			assert.Equal(t, tt.counts.Succeeded, s.Succeeded)
			assert.Equal(t, tt.counts.Failed, s.Failed)
			assert.Len(t, s.TopN, tt.wantTop)
			assert.Equal(t, tt.wantEmpty, s.AllFailed())
			assert.NotNil(t, s.FailedItems)
			if !tt.wantEmpty {
				assert.Equal(t, s.Ranked[:tt.wantTop], s.TopN)
			}
		})
	}
}

func TestAggregator_ResolveDropsOrphans(t *testing.T) {
	agg := NewAggregator()
	agg.Add(result("keep", 1, 50))
	agg.Add(result("gone", 2, 99))

	s := agg.Finalize(Counts{Total: 1, Succeeded: 1}, FinalizeOptions{
		Resolve: func(id string) bool { return id == "keep" },
	})

	require.Len(t, s.Ranked, 1)
	assert.Equal(t, "keep", s.Ranked[0].SubjectID)
	assert.Equal(t, 1, s.Ranked[0].Rank)
}

func TestAggregator_ResetAndInconsistent(t *testing.T) {
	agg := NewAggregator()
	agg.Add(result("a", 1, 50))
	agg.NoteInconsistent()

	s := agg.Finalize(Counts{Total: 2, Succeeded: 2}, FinalizeOptions{})
	assert.Equal(t, 1, s.Inconsistent)
	assert.Len(t, s.Ranked, 1)

	agg.Reset()
	assert.Equal(t, 0, agg.Len())
	s = agg.Finalize(Counts{}, FinalizeOptions{})
	assert.Equal(t, 0, s.Inconsistent)
	assert.Empty(t, s.Ranked)
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Add(result(fmt.Sprint(i), uint64(i+1), float64(i%10)))
		}()
	}
	wg.Wait()

	s := agg.Finalize(Counts{Total: 50, Succeeded: 50}, FinalizeOptions{})
	assert.Len(t, s.Ranked, 50)
	assert.Equal(t, 9.0, s.Ranked[0].OverallFitPercentage)
}

func TestFromBatch(t *testing.T) {
	raw := `{
		"total_resumes": 5,
		"successful": 3,
		"failed": 2,
		"results": [
			{"resume_id": 0, "filename": "a.pdf", "overall_fit_percentage": 40, "rank": 3},
			{"resume_id": 1, "filename": "b.pdf", "overall_fit_percentage": "90", "rank": 1},
			{"resume_id": 2, "filename": "c.pdf", "overall_fit_percentage": 90, "rank": 2}
		],
		"top_5": [],
		"failed_resumes": [
			{"resume_id": 3, "filename": "d.pdf", "error": "Unreadable", "status": "failed"},
			{"resume_id": 4, "filename": "e.pdf", "error": "Too short", "status": "failed"}
		]
	}`

	var resp types.BatchResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	s := FromBatch(resp, 2)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, []float64{90, 90, 40}, fits(s.Ranked))
	assert.Equal(t, "1", s.Ranked[0].SubjectID)
	assert.Equal(t, "b.pdf", s.Ranked[0].Filename)
	assert.Equal(t, "c.pdf", s.Ranked[1].Filename)
	assert.Len(t, s.TopN, 2)
	assert.Len(t, s.FailedItems, 2)
}

func TestFromBatch_AllFailed(t *testing.T) {
	s := FromBatch(types.BatchResponse{
		FailedResumes: []types.FailedResume{{Filename: "a.pdf", Error: "x", Status: "failed"}},
	}, 5)

	assert.True(t, s.AllFailed())
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.Empty(t, s.Ranked)
}
