// Package classifier derives a complaint's priority tier from the urgency
// and sentiment signals supplied by the analysis collaborator.
package classifier

import (
	"math"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
)

// Defaults substituted when the analysis collaborator is unavailable or a
// score is missing (NaN is the in-band missing marker).
const (
	DefaultUrgency   = 5.0
	DefaultSentiment = 0.0
)

// Score bounds; upstream analysis output is not fully trusted, so values
// outside these ranges are clamped rather than rejected.
const (
	urgencyMin   = 0.0
	urgencyMax   = 10.0
	sentimentMin = -1.0
	sentimentMax = 1.0
)

// Classify maps (urgency, sentiment) onto a priority tier. The rules are
// evaluated top to bottom with the most severe condition first, so the first
// match is always the most severe applicable tier. The function is pure and
// total: every float64 pair, including NaN, yields a tier.
func Classify(urgency, sentiment float64) domain.ComplaintPriority {
	if math.IsNaN(urgency) {
		urgency = DefaultUrgency
	}
	if math.IsNaN(sentiment) {
		sentiment = DefaultSentiment
	}
	urgency = clamp(urgency, urgencyMin, urgencyMax)
	sentiment = clamp(sentiment, sentimentMin, sentimentMax)

	switch {
	case urgency >= 8 || (urgency >= 6 && sentiment <= -0.5):
		return domain.PriorityCritical
	case urgency >= 6 || (urgency >= 4 && sentiment <= -0.3):
		return domain.PriorityHigh
	case urgency >= 3:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// ClampScores normalizes raw analysis output to the documented ranges so the
// stored scores always match what the classifier saw.
func ClampScores(urgency, sentiment float64) (float64, float64) {
	if math.IsNaN(urgency) {
		urgency = DefaultUrgency
	}
	if math.IsNaN(sentiment) {
		sentiment = DefaultSentiment
	}
	return clamp(urgency, urgencyMin, urgencyMax), clamp(sentiment, sentimentMin, sentimentMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
