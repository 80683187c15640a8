package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/errors"
	"resumerank/internal/types"
)

func compareSummary() types.Summary {
	strong := types.AnalysisResult{
		SubjectID: "a", OverallFitPercentage: 80,
		Scorecard: map[string]float64{
			"technical_expertise": 4, "domain_knowledge": 4, "leadership_scope": 4,
			"experience_match": 4, "execution_capability": 4,
		},
		Recommendation: types.Recommendation{Decision: "RECOMMENDED"},
	}
	b := types.AnalysisResult{SubjectID: "b", OverallFitPercentage: 60}
	c := types.AnalysisResult{SubjectID: "c", OverallFitPercentage: 60}
	weak := types.AnalysisResult{
		SubjectID: "d", OverallFitPercentage: 10,
		Scorecard:      map[string]float64{"execution_capability": 5},
		Recommendation: types.Recommendation{Decision: "NOT RECOMMENDED"},
	}
	ranked := Rank([]types.AnalysisResult{strong, b, c, weak})
	return types.Summary{Total: 4, Succeeded: 4, Ranked: ranked, TopN: top(ranked, 2)}
}

func TestWeightedScore(t *testing.T) {
	s := compareSummary()
	assert.InDelta(t, 82.0, WeightedScore(s.Ranked[0]), 1e-9)
	// unrated execution capability counts as 3
	assert.InDelta(t, 34.8, WeightedScore(s.Ranked[1]), 1e-9)
	assert.InDelta(t, 13.0, WeightedScore(s.Ranked[3]), 1e-9)
}

func TestRecommendationScore(t *testing.T) {
	tests := []struct {
		decision string
		want     float64
	}{
		{"", 0},
		{"RECOMMENDED", 100},
		{"recommended", 100},
		{"CONDITIONAL", 50},
		{"NOT RECOMMENDED", 0},
		{"maybe", 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendationScore(tt.decision), tt.decision)
	}
}

func TestCompare(t *testing.T) {
	s := compareSummary()

	top, err := Compare(s, "b", true)
	require.NoError(t, err)
	assert.Equal(t, ScopeTop, top.Scope)
	require.Len(t, top.Matchups, 1)
	assert.Equal(t, "a", top.Matchups[0].Peer.SubjectID)
	assert.Equal(t, "peer", top.Matchups[0].Winner)
	assert.InDelta(t, 47.2, top.Matchups[0].Margin, 1e-9)

	all, err := Compare(s, "b", false)
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, all.Scope)
	require.Len(t, all.Matchups, 3)
	winners := []string{}
	for _, m := range all.Matchups {
		winners = append(winners, m.Peer.SubjectID+":"+m.Winner)
	}
	assert.Equal(t, []string{"a:peer", "c:tie", "d:candidate"}, winners)
	assert.Zero(t, all.Matchups[1].Margin)
}

func TestCompare_UnknownCandidate(t *testing.T) {
	_, err := Compare(compareSummary(), "zzz", false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeItemNotFound))
}
