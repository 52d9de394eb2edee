package dto

import (
	"time"

	"github.com/google/uuid"
)

// ConsciousnessState is a polled snapshot of the dialogue engine's internal
// posture. All four metrics are bounded to [0,1]. The client treats it as
// best-effort supplementary data, never part of the message timeline.
type ConsciousnessState struct {
	UserId                 uuid.UUID `json:"user_id"`
	SessionId              uuid.UUID `json:"session_id"`
	EpistemicHumility      float64   `json:"epistemic_humility"`
	BeliefVolatility       float64   `json:"belief_volatility"`
	ContradictionAwareness float64   `json:"contradiction_awareness"`
	DepthOfInquiry         float64   `json:"depth_of_inquiry"`
	Timestamp              time.Time `json:"timestamp"`
}

type ConsciousnessResponse struct {
	State ConsciousnessState `json:"state"`
}
