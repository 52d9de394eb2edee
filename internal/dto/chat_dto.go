package dto

import (
	"github.com/google/uuid"
)

// ChatMode selects which engine processes a message server-side and shapes
// the response: "conversation" returns plain dialogue, "analysis" returns a
// four-layer discourse analysis, "integrated" returns both.
type ChatMode string

const (
	ModeConversation ChatMode = "conversation"
	ModeAnalysis     ChatMode = "analysis"
	ModeIntegrated   ChatMode = "integrated"
)

func (m ChatMode) Valid() bool {
	switch m {
	case ModeConversation, ModeAnalysis, ModeIntegrated:
		return true
	}
	return false
}

type ChatRequest struct {
	Message   string     `json:"message" validate:"required"`
	Mode      ChatMode   `json:"mode" validate:"required,oneof=conversation analysis integrated"`
	SessionId *uuid.UUID `json:"session_id,omitempty"`
}

type ChatResponse struct {
	SessionId      uuid.UUID       `json:"session_id"`
	Message        string          `json:"message"`
	Mode           ChatMode        `json:"mode"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
	Contradictions []Contradiction `json:"contradictions,omitempty"`
	BeliefsUpdated []Belief        `json:"beliefs_updated,omitempty"`
}

type AnalyzeRequest struct {
	Text string `json:"text" validate:"required"`
}

type AnalyzeResponse struct {
	Analysis AnalysisResult `json:"analysis"`
}

// ErrorResponse is the body the server sends on any non-success status.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}
