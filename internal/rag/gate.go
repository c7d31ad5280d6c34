package rag

import (
	"fmt"

	"github.com/xxxsen/pdfqa/internal/model"
)

const (
	reasonNoResults = "no documents retrieved"
	reasonPassed    = "retrieval quality check passed"
)

type Gate struct {
	threshold float64
}

func NewGate(threshold float64) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("score threshold %v out of range [0, 1]", threshold)
	}
	return &Gate{threshold: threshold}, nil
}

func (g *Gate) Threshold() float64 {
	return g.threshold
}

func (g *Gate) Check(result *model.RetrievalResult) model.GroundingDecision {
	return Check(result, g.threshold)
}

// Check passes when the best score reaches threshold. Only the top score
// is considered, the rest of the ranking is carried along untouched.
func Check(result *model.RetrievalResult, threshold float64) model.GroundingDecision {
	if result.Empty() {
		return model.GroundingDecision{Passed: false, Reason: reasonNoResults}
	}
	top := result.TopScore()
	if top < threshold {
		return model.GroundingDecision{
			Passed:   false,
			Reason:   fmt.Sprintf("top retrieval score (%.3f) below threshold (%.3f)", top, threshold),
			TopScore: top,
		}
	}
	return model.GroundingDecision{
		Passed:   true,
		Reason:   reasonPassed,
		TopScore: top,
		Sources:  result.Chunks,
	}
}
