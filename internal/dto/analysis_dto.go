package dto

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the complete four-layer discourse analysis the server
// attaches to assistant replies in analysis and integrated modes.
//
// Finding slices deliberately omit `omitempty`: an empty list means the layer
// ran and found nothing, which is distinct from the artifact being absent
// (mode did not produce one). Keeping the key in the JSON preserves that
// distinction on the wire.
type AnalysisResult struct {
	Id                uuid.UUID         `json:"id"`
	InputText         string            `json:"input_text"`
	Syntactic         SyntacticAnalysis `json:"syntactic"`
	Semantic          SemanticAnalysis  `json:"semantic"`
	Discourse         DiscourseAnalysis `json:"discourse"`
	CriticalSynthesis CriticalSynthesis `json:"critical_synthesis"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Layer 1: grammatical surface.
type SyntacticAnalysis struct {
	VoiceAnalysis      []VoiceInstance        `json:"voice_analysis"`
	SentenceComplexity []SentenceComplexity   `json:"sentence_complexity"`
	Nominalisations    []Nominalisation       `json:"nominalisations"`
	Transitivity       []TransitivityInstance `json:"transitivity"`
}

type VoiceInstance struct {
	Sentence     string `json:"sentence"`
	Voice        string `json:"voice"` // "active" | "passive"
	Significance string `json:"significance"`
}

type SentenceComplexity struct {
	Sentence    string  `json:"sentence"`
	Score       float64 `json:"score"`
	ClauseCount uint32  `json:"clause_count"`
	Note        string  `json:"note"`
}

type Nominalisation struct {
	Original string `json:"original"`
	VerbForm string `json:"verb_form"`
	Effect   string `json:"effect"`
}

type TransitivityInstance struct {
	Sentence string `json:"sentence"`
	Actor    string `json:"actor"`
	Process  string `json:"process"`
	Affected string `json:"affected"`
	Analysis string `json:"analysis"`
}

// Layer 2: meaning beneath the surface.
type SemanticAnalysis struct {
	Presuppositions  []Presupposition `json:"presuppositions"`
	Implicatures     []Implicature    `json:"implicatures"`
	PowerHierarchies []PowerHierarchy `json:"power_hierarchies"`
	LexicalFields    []LexicalField   `json:"lexical_fields"`
}

type Presupposition struct {
	Trigger            string `json:"trigger"`
	PresupposedContent string `json:"presupposed_content"`
	Significance       string `json:"significance"`
}

type Implicature struct {
	Statement      string `json:"statement"`
	ImpliedMeaning string `json:"implied_meaning"`
	Mechanism      string `json:"mechanism"`
}

type PowerHierarchy struct {
	Dominant          string   `json:"dominant"`
	Subordinate       string   `json:"subordinate"`
	LinguisticMarkers []string `json:"linguistic_markers"`
	Analysis          string   `json:"analysis"`
}

type LexicalField struct {
	FieldName   string   `json:"field_name"`
	Terms       []string `json:"terms"`
	Connotation string   `json:"connotation"`
}

// Layer 3: discourse-level patterning.
type DiscourseAnalysis struct {
	Framing            []FramingInstance       `json:"framing"`
	StrategicOmissions []StrategicOmission     `json:"strategic_omissions"`
	Collocations       []CollocationPattern    `json:"collocations"`
	Intertextuality    []IntertextualityMarker `json:"intertextuality"`
}

type FramingInstance struct {
	FrameName string `json:"frame_name"`
	Evidence  string `json:"evidence"`
	Effect    string `json:"effect"`
}

type StrategicOmission struct {
	WhatIsMissing string `json:"what_is_missing"`
	WhyItMatters  string `json:"why_it_matters"`
	WhoBenefits   string `json:"who_benefits"`
}

type CollocationPattern struct {
	Pattern            string `json:"pattern"`
	FrequencyNote      string `json:"frequency_note"`
	IdeologicalLoading string `json:"ideological_loading"`
}

type IntertextualityMarker struct {
	Reference       string `json:"reference"`
	SourceDiscourse string `json:"source_discourse"`
	Function        string `json:"function"`
}

// Layer 4: critical synthesis across the first three.
type CriticalSynthesis struct {
	NaturalisedClaims   []NaturalisedClaim    `json:"naturalised_claims"`
	BeneficiaryAnalysis []BeneficiaryAnalysis `json:"beneficiary_analysis"`
	HiddenContexts      []HiddenContext       `json:"hidden_contexts"`
	AlternativeFramings []AlternativeFraming  `json:"alternative_framings"`
}

type NaturalisedClaim struct {
	Claim           string `json:"claim"`
	HowNaturalised  string `json:"how_naturalised"`
	CounterEvidence string `json:"counter_evidence"`
}

type BeneficiaryAnalysis struct {
	WhoBenefits        string `json:"who_benefits"`
	How                string `json:"how"`
	WhoIsDisadvantaged string `json:"who_is_disadvantaged"`
}

type HiddenContext struct {
	Context   string `json:"context"`
	Relevance string `json:"relevance"`
	WhyHidden string `json:"why_hidden"`
}

type AlternativeFraming struct {
	OriginalFrame string `json:"original_frame"`
	Alternative   string `json:"alternative"`
	SameFactsUsed string `json:"same_facts_used"`
}
