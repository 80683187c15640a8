package results

import (
	"strings"

	"resumerank/internal/errors"
	"resumerank/internal/types"
)

// Scorecard keys that make up a candidate's total score
var scorecardKeys = []string{
	"technical_expertise",
	"domain_knowledge",
	"leadership_scope",
	"experience_match",
	"execution_capability",
}

// defaultExecutionScore stands in for an unrated execution capability
const defaultExecutionScore = 3.0

// Comparison pits one ranked candidate against its peers
type Comparison struct {
	Candidate types.AnalysisResult `json:"candidate" yaml:"candidate"`
	Score     float64              `json:"weighted_score" yaml:"weighted_score"`
	Scope     string               `json:"scope" yaml:"scope"`
	Matchups  []Matchup            `json:"matchups" yaml:"matchups"`
}

// Matchup is the head-to-head outcome against one peer. Winner is
// "candidate", "peer" or "tie"; Margin is never negative.
type Matchup struct {
	Peer      types.AnalysisResult `json:"peer" yaml:"peer"`
	PeerScore float64              `json:"peer_weighted_score" yaml:"peer_weighted_score"`
	Winner    string               `json:"winner" yaml:"winner"`
	Margin    float64              `json:"margin" yaml:"margin"`
}

// Comparison scopes
const (
	ScopeTop = "top"
	ScopeAll = "all"
)

// Compare weighs the candidate identified by subjectID against the other
// candidates of summary: the highlighted top list when topOnly is set,
// every ranked candidate otherwise. Peers keep their rank order.
func Compare(summary types.Summary, subjectID string, topOnly bool) (Comparison, error) {
	pool, scope := summary.Ranked, ScopeAll
	if topOnly {
		pool, scope = summary.TopN, ScopeTop
	}

	idx := -1
	for i, r := range summary.Ranked {
		if r.SubjectID == subjectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Comparison{}, errors.NewValidationError(errors.ErrCodeItemNotFound,
			"Selected candidate not found", nil).WithContext("id", subjectID)
	}

	candidate := summary.Ranked[idx]
	c := Comparison{
		Candidate: candidate,
		Score:     WeightedScore(candidate),
		Scope:     scope,
		Matchups:  []Matchup{},
	}
	for _, peer := range pool {
		if peer.SubjectID == subjectID {
			continue
		}
		m := Matchup{Peer: peer, PeerScore: WeightedScore(peer), Winner: "tie"}
		switch {
		case c.Score > m.PeerScore:
			m.Winner, m.Margin = "candidate", c.Score-m.PeerScore
		case m.PeerScore > c.Score:
			m.Winner, m.Margin = "peer", m.PeerScore-c.Score
		}
		c.Matchups = append(c.Matchups, m)
	}
	return c, nil
}

// WeightedScore blends fit (50%), the scorecard total scaled to 100 (40%)
// and the recommendation (10%) into one 0-100 score
func WeightedScore(r types.AnalysisResult) float64 {
	return r.OverallFitPercentage*0.5 + ScorecardTotal(r)*4*0.4 + RecommendationScore(r.Recommendation.Decision)*0.1
}

// ScorecardTotal sums the five scorecard dimensions, 0-25
func ScorecardTotal(r types.AnalysisResult) float64 {
	var total float64
	for _, key := range scorecardKeys {
		v := r.Scorecard[key]
		if v == 0 && key == "execution_capability" {
			v = defaultExecutionScore
		}
		total += v
	}
	return total
}

// RecommendationScore maps a hiring decision onto 0-100
func RecommendationScore(decision string) float64 {
	if strings.TrimSpace(decision) == "" {
		return 0
	}
	switch types.RecommendationClass(decision) {
	case "recommended":
		return 100
	case "conditional":
		return 50
	case "not-recommended":
		return 0
	default:
		return 25
	}
}
