package dto

import (
	"time"

	"github.com/google/uuid"
)

// Belief is a claim the server has extracted from the conversation, with a
// provenance link back to the message that produced it. Read-only for this
// client; surfaced via explicit lookup, never merged into the timeline.
type Belief struct {
	Id              uuid.UUID `json:"id"`
	UserId          uuid.UUID `json:"user_id"`
	Claim           string    `json:"claim"`
	Confidence      float64   `json:"confidence"`
	SourceMessageId uuid.UUID `json:"source_message_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Contradiction struct {
	BeliefA     Belief  `json:"belief_a"`
	BeliefB     Belief  `json:"belief_b"`
	Explanation string  `json:"explanation"`
	Severity    float64 `json:"severity"`
}

type BeliefsResponse struct {
	UserId  uuid.UUID `json:"user_id"`
	Beliefs []Belief  `json:"beliefs"`
	Total   int       `json:"total"`
}
