package contracts

import (
	"encoding/json"
	"fmt"
)

// FeatureSet is a tagged variant over the per-type detector features. Exactly
// one of the typed records is non-nil, matching Type. Scores is populated by
// the confidence scorer after detection.
//
// On the wire (store, evidence hash, LLM payload) a FeatureSet flattens to a
// single JSON object whose keys depend on the candidate type, with the four
// sub-scores S/R/I/Q merged in once scoring has run.
type FeatureSet struct {
	Type             string
	DuplicatePayment *DuplicatePaymentFeatures
	LengthyApproval  *LengthyApprovalFeatures
	Maverick         *MaverickFeatures
	Scores           *SubScores
}

// DuplicatePaymentFeatures describe repeated ExecutePayment events against a
// single invoice receipt.
type DuplicatePaymentFeatures struct {
	PaymentCount    int      `json:"payment_count"`
	PaymentTSList   []string `json:"payment_ts_list"`
	PaymentEventIDs []string `json:"payment_event_ids"`
}

// LengthyApprovalFeatures describe a create-to-approval lead time that
// exceeded the adaptive threshold.
type LengthyApprovalFeatures struct {
	LeadTimeHours         float64 `json:"lead_time_hours"`
	ThresholdHours        float64 `json:"threshold_hours"`
	CreateEventID         string  `json:"create_event_id"`
	ApprovalEventID       string  `json:"approval_event_id"`
	ApprovalEventActivity string  `json:"approval_event_activity"`
}

// MaverickFeatures describe an incomplete PO->PR provenance chain.
// ApprovalGapHours is carried for the po_before_pr_approval scoring rule but
// is never populated by the detector.
type MaverickFeatures struct {
	POCreateTS       string   `json:"po_create_ts"`
	PRCreateTS       *string  `json:"pr_create_ts"`
	PRApproveTS      *string  `json:"pr_approve_ts"`
	RFQTS            *string  `json:"rfq_ts"`
	HasPR            bool     `json:"has_pr"`
	ApprovalGapHours *float64 `json:"approval_gap_hours"`
	MaverickReason   string   `json:"maverick_reason"`
	MissingEvents    []string `json:"missing_events,omitempty"`
}

// SubScores are the four confidence components written back after scoring.
type SubScores struct {
	S float64 `json:"S"`
	R float64 `json:"R"`
	I float64 `json:"I"`
	Q float64 `json:"Q"`
}

// Flat returns the flattened key/value form of the feature set.
func (f FeatureSet) Flat() (map[string]any, error) {
	out := map[string]any{}
	var typed any
	switch f.Type {
	case TypeDuplicatePayment:
		typed = f.DuplicatePayment
	case TypeLengthyApprovalPR, TypeLengthyApprovalPO:
		typed = f.LengthyApproval
	case TypeMaverickBuying:
		typed = f.Maverick
	case "":
		typed = nil
	default:
		return nil, fmt.Errorf("features: unknown candidate type %q", f.Type)
	}
	if typed != nil {
		b, err := json.Marshal(typed)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
	}
	if f.Scores != nil {
		out["S"] = f.Scores.S
		out["R"] = f.Scores.R
		out["I"] = f.Scores.I
		out["Q"] = f.Scores.Q
	}
	return out, nil
}

// MarshalJSON emits the flattened form.
func (f FeatureSet) MarshalJSON() ([]byte, error) {
	flat, err := f.Flat()
	if err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

// DecodeFeatures parses a stored flat feature object back into a typed
// FeatureSet. The candidate type supplies the discriminant; the flat form does
// not carry one.
func DecodeFeatures(ctype string, raw []byte) (FeatureSet, error) {
	fs := FeatureSet{Type: ctype}
	if len(raw) == 0 {
		return fs, nil
	}
	switch ctype {
	case TypeDuplicatePayment:
		var v DuplicatePaymentFeatures
		if err := json.Unmarshal(raw, &v); err != nil {
			return fs, fmt.Errorf("features: decode %s: %w", ctype, err)
		}
		fs.DuplicatePayment = &v
	case TypeLengthyApprovalPR, TypeLengthyApprovalPO:
		var v LengthyApprovalFeatures
		if err := json.Unmarshal(raw, &v); err != nil {
			return fs, fmt.Errorf("features: decode %s: %w", ctype, err)
		}
		fs.LengthyApproval = &v
	case TypeMaverickBuying:
		var v MaverickFeatures
		if err := json.Unmarshal(raw, &v); err != nil {
			return fs, fmt.Errorf("features: decode %s: %w", ctype, err)
		}
		fs.Maverick = &v
	default:
		return fs, fmt.Errorf("features: unknown candidate type %q", ctype)
	}
	var scores SubScores
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fs, fmt.Errorf("features: decode scores: %w", err)
	}
	if _, ok := probe["S"]; ok {
		if err := json.Unmarshal(raw, &scores); err != nil {
			return fs, fmt.Errorf("features: decode scores: %w", err)
		}
		fs.Scores = &scores
	}
	return fs, nil
}
