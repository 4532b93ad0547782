// Package contracts holds the data contracts shared between the mining
// pipeline, the serving store, and the LLM verification layer.
package contracts

import "time"

// Candidate types produced by the detector suite.
const (
	TypeDuplicatePayment  = "duplicate_payment"
	TypeLengthyApprovalPR = "lengthy_approval_pr"
	TypeLengthyApprovalPO = "lengthy_approval_po"
	TypeMaverickBuying    = "maverick_buying"
)

// Maverick reason codes. ReasonPOBeforePRApproval is referenced by the
// scoring and severity tables but is not produced by the current detector.
const (
	ReasonNoPRFound         = "no_pr_found"
	ReasonMissingPRCreate   = "missing_pr_create"
	ReasonMissingPRApproval = "missing_pr_approval"
	ReasonPOBeforePRApproval = "po_before_pr_approval"
)

// Candidate is one detected anomaly instance. CandidateID is content-derived
// (see pkg/identity) so reruns over an unchanged log converge on the same row.
type Candidate struct {
	CandidateID      string     `json:"candidate_id"`
	RunID            string     `json:"run_id,omitempty"`
	Type             string     `json:"type"`
	AnchorObjectID   string     `json:"anchor_object_id"`
	AnchorObjectType string     `json:"anchor_object_type"`
	BaseConf         float64    `json:"base_conf"`
	FinalConf        float64    `json:"final_conf"`
	Severity         *float64   `json:"severity,omitempty"`
	PriorityScore    *float64   `json:"priority_score,omitempty"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Raw detector output carried through the pipeline. Persisted on the
	// evidence record, not on the candidate row.
	EvidenceEventIDs  []string   `json:"-"`
	EvidenceObjectIDs []string   `json:"-"`
	Features          FeatureSet `json:"-"`
}

// Evidence is the per-candidate grounding set: the event and object ids the
// detector cited, a chronological timeline, the scored feature map, and a
// node/edge subgraph for display and LLM grounding.
type Evidence struct {
	CandidateID       string          `json:"candidate_id"`
	EvidenceEventIDs  []string        `json:"evidence_event_ids"`
	EvidenceObjectIDs []string        `json:"evidence_object_ids"`
	Timeline          []TimelineEntry `json:"timeline"`
	Features          FeatureSet      `json:"features"`
	Subgraph          Subgraph        `json:"subgraph"`
}

// TimelineEntry is one resolved evidence event. Entries are sorted ascending
// by the raw timestamp string; an empty timestamp sorts first.
type TimelineEntry struct {
	EventID         string   `json:"event_id"`
	Activity        string   `json:"activity"`
	TS              string   `json:"ts"`
	Resource        string   `json:"resource"`
	Lifecycle       string   `json:"lifecycle"`
	LinkedObjectIDs []string `json:"linked_object_ids"`
}

// Subgraph node and edge kinds.
const (
	NodeEvent  = "Event"
	NodeObject = "Object"
	EdgeE2O    = "E2O"
	EdgeO2O    = "O2O"
)

// Subgraph is the evidence neighborhood around a candidate.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is either an Event node (Activity set) or an Object node (ObjectType set).
type Node struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Activity   string `json:"activity,omitempty"`
	ObjectType string `json:"object_type,omitempty"`
}

// Edge links an event to an object (E2O) or two objects (O2O).
type Edge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Type      string `json:"type"`
	Qualifier string `json:"qualifier,omitempty"`
}
