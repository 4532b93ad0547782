// Package identity assigns content-derived candidate ids so that repeated
// pipeline runs over an unchanged log converge on the same rows.
package identity

import (
	"sort"

	"github.com/google/uuid"

	"github.com/procurelens/core/pkg/canonical"
	"github.com/procurelens/core/pkg/contracts"
)

// Namespace is the fixed UUIDv5 namespace for candidate identity. It must
// never change: every stored candidate id is derived from it.
var Namespace = uuid.MustParse("6f2efcf2-2dc4-4e34-a25a-5d7f0f4df9b3")

// CandidateID computes the deterministic id for a candidate:
//
//	UUIDv5(Namespace, canonical_json({type, anchor, sorted evidence event ids}))
//
// Evidence event ids are sorted before hashing, so detector emission order
// does not affect identity.
func CandidateID(ctype, anchorObjectID string, evidenceEventIDs []string) (string, error) {
	evidence := make([]string, len(evidenceEventIDs))
	copy(evidence, evidenceEventIDs)
	sort.Strings(evidence)

	payload := map[string]any{
		"type":     ctype,
		"anchor":   anchorObjectID,
		"evidence": evidence,
	}
	raw, err := canonical.Marshal(payload)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(Namespace, raw).String(), nil
}

// Assign stamps each candidate with its content-derived id.
func Assign(candidates []contracts.Candidate) error {
	for i := range candidates {
		id, err := CandidateID(candidates[i].Type, candidates[i].AnchorObjectID, candidates[i].EvidenceEventIDs)
		if err != nil {
			return err
		}
		candidates[i].CandidateID = id
	}
	return nil
}
