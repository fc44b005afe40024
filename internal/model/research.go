package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput is returned by PipelineInput.Validate.
var ErrInvalidInput = eris.New("invalid pipeline input")

// DecisionStatus is the terminal verdict of one pipeline invocation.
type DecisionStatus string

const (
	DecisionEvidenceSufficient   DecisionStatus = "EVIDENCE_SUFFICIENT"
	DecisionInsufficientEvidence DecisionStatus = "INSUFFICIENT_EVIDENCE"
)

// PassName identifies one stage of the search campaign.
type PassName string

const (
	PassSeed      PassName = "seed"
	PassExpand    PassName = "expand"
	PassAuthority PassName = "authority"
)

// PipelineInput is the per-invocation request. Goal and Decision are expected
// to already be in the working research language.
type PipelineInput struct {
	Goal           string   `json:"goal" yaml:"goal"`
	Decision       string   `json:"decision" yaml:"decision"`
	OutputFormat   string   `json:"output_format" yaml:"output_format"`
	OutputLanguage Language `json:"output_language,omitempty" yaml:"output_language"`
	Constraints    string   `json:"constraints,omitempty" yaml:"constraints"`
}

// Validate rejects inputs with a blank goal or decision.
func (in PipelineInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Goal) == "" {
		missing = append(missing, "goal")
	}
	if strings.TrimSpace(in.Decision) == "" {
		missing = append(missing, "decision")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidInput, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// QueryTrace records how a single query was shaped before it was issued.
type QueryTrace struct {
	Query          string `json:"q"`
	Truncated      bool   `json:"truncated"`
	OriginalLength int    `json:"original_length"`
	UsedLength     int    `json:"used_length"`
	Hash           string `json:"hash"`
}

// DebugPass is the telemetry record of one search pass.
type DebugPass struct {
	Pass          PassName     `json:"pass"`
	Queries       []QueryTrace `json:"queries"`
	SourceCount   int          `json:"source_count"`
	UniqueDomains int          `json:"unique_domains"`
}

// DebugInfo is attached to PipelineOutput only when requested.
type DebugInfo struct {
	Passes []DebugPass `json:"passes"`
}

// GateMetrics summarizes a merged source set.
type GateMetrics struct {
	TotalSources  int     `json:"total_sources"`
	UniqueDomains int     `json:"unique_domains"`
	AvgScore      float64 `json:"avg_score"`
	TopScore      float64 `json:"top_score"`
	Top3Avg       float64 `json:"top3_avg"`
	LowInfoRatio  float64 `json:"low_info_ratio"`
}

// ConfidenceOverview is the caller-facing confidence summary.
type ConfidenceOverview struct {
	Overall   float64 `json:"overall"`
	Rationale string  `json:"rationale"`
}

// PipelineOutput is the terminal result handed to report generation.
type PipelineOutput struct {
	DecisionStatus DecisionStatus     `json:"decision_status"`
	Recommendation string             `json:"recommendation"`
	Confidence     ConfidenceOverview `json:"confidence_overview"`
	Sources        []Source           `json:"sources"`
	Debug          *DebugInfo         `json:"debug,omitempty"`
}

// Sufficient reports whether the gate accepted the evidence.
func (o *PipelineOutput) Sufficient() bool {
	return o.DecisionStatus == DecisionEvidenceSufficient
}
