package llm

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/procurelens/core/pkg/canonical"
	"github.com/procurelens/core/pkg/contracts"
)

// PromptVersion participates in the prompt hash: bumping it invalidates every
// cached result produced under the previous prompts.
const PromptVersion = "v2.1"

// Schema versions stamped into outputs.
const (
	VerifySchemaVersion  = "verify.v2.1"
	ExplainSchemaVersion = "explain.v2.1"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var promptFiles = map[string]string{
	contracts.TaskVerify:  "prompts/verify_rule.tmpl",
	contracts.TaskExplain: "prompts/explain_case.tmpl",
}

var schemaFiles = map[string]string{
	contracts.TaskVerify:  "schemas/llm_verify.schema.json",
	contracts.TaskExplain: "schemas/llm_explain.schema.json",
}

var (
	promptTexts     = map[string]string{}
	promptTemplates = map[string]*template.Template{}
	outputSchemas   = map[string]*jsonschema.Schema{}
)

func init() {
	for task, path := range promptFiles {
		raw, err := promptFS.ReadFile(path)
		if err != nil {
			panic(err)
		}
		promptTexts[task] = string(raw)
		promptTemplates[task] = template.Must(template.New(task).Parse(string(raw)))
	}
	for task, path := range schemaFiles {
		raw, err := schemaFS.ReadFile(path)
		if err != nil {
			panic(err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(path, strings.NewReader(string(raw))); err != nil {
			panic(err)
		}
		outputSchemas[task] = c.MustCompile(path)
	}
}

// ruleText is the fixed per-type rule description injected into prompts.
func ruleText(candidateType string) string {
	switch candidateType {
	case contracts.TypeDuplicatePayment:
		return "Same invoice object has ExecutePayment event count >= 2."
	case contracts.TypeLengthyApprovalPR:
		return "PR: CreatePurchaseRequisition -> approval complete lead time exceeds threshold. " +
			"Approval complete = ApprovePurchaseRequisition OR DelegatePurchaseRequisitionApproval."
	case contracts.TypeLengthyApprovalPO:
		return "PO: CreatePurchaseOrder -> ApprovePurchaseOrder lead time exceeds threshold."
	case contracts.TypeMaverickBuying:
		return "PO created before PR approval-complete or approval-complete missing for linked PR. " +
			"Approval complete = ApprovePurchaseRequisition OR DelegatePurchaseRequisitionApproval."
	default:
		return "Unknown rule."
	}
}

type promptInput struct {
	Rule          string
	CandidateJSON string
	EvidenceJSON  string
}

// candidatePayload is the candidate subset rendered into prompts.
func candidatePayload(c *contracts.Candidate) map[string]any {
	return map[string]any{
		"candidate_id":       c.CandidateID,
		"type":               c.Type,
		"anchor_object_id":   c.AnchorObjectID,
		"anchor_object_type": c.AnchorObjectType,
		"base_conf":          c.BaseConf,
		"final_conf":         c.FinalConf,
		"status":             c.Status,
	}
}

func evidencePayload(ev *contracts.Evidence) map[string]any {
	return map[string]any{
		"evidence_event_ids":  ev.EvidenceEventIDs,
		"evidence_object_ids": ev.EvidenceObjectIDs,
		"timeline":            ev.Timeline,
		"features":            ev.Features,
		"subgraph":            ev.Subgraph,
	}
}

// renderPrompt builds the deterministic prompt for one task. Candidate and
// evidence are serialized canonically so identical content always renders the
// same bytes.
func renderPrompt(task string, c *contracts.Candidate, ev *contracts.Evidence) (string, error) {
	candJSON, err := canonical.Marshal(candidatePayload(c))
	if err != nil {
		return "", err
	}
	evJSON, err := canonical.Marshal(evidencePayload(ev))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = promptTemplates[task].Execute(&buf, promptInput{
		Rule:          ruleText(c.Type),
		CandidateJSON: string(candJSON),
		EvidenceJSON:  string(evJSON),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PromptHashFor exposes the hash of the current prompt version + template, so
// callers can correlate "latest" results with the active prompt.
func PromptHashFor(task string) string {
	return canonical.HashText(PromptVersion + promptTexts[task])
}
