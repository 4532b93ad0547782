// Package ocel reads a materialized object-centric event log (objects,
// object-object relations, event-object relations, unified event view) into an
// in-memory snapshot, derives the normalized event-object link table, and
// exposes typed graph traversal over object relations.
package ocel

// Procurement object types as they appear in the log.
const (
	ObjectPurchaseRequisition = "purchase_requisition"
	ObjectPurchaseOrder       = "purchase_order"
	ObjectQuotation           = "quotation"
	ObjectInvoiceReceipt      = "invoice receipt"
	ObjectMaterial            = "material"
)

// Activities the detectors key on.
const (
	ActivityExecutePayment       = "ExecutePayment"
	ActivityCreatePR             = "CreatePurchaseRequisition"
	ActivityApprovePR            = "ApprovePurchaseRequisition"
	ActivityDelegatePRApproval   = "DelegatePurchaseRequisitionApproval"
	ActivityCreatePO             = "CreatePurchaseOrder"
	ActivityApprovePO            = "ApprovePurchaseOrder"
	ActivityCreateRFQ            = "CreateRequestforQuotation"
)

// ApprovalCompleteActivities are the activities that close a purchase
// requisition approval, in no particular order; the earliest occurrence wins.
var ApprovalCompleteActivities = []string{
	ActivityApprovePR,
	ActivityDelegatePRApproval,
}

// Event is one row of the unified event view. TS is kept as the raw timestamp
// string; consumers parse it when they need instants and sort on the string
// where the contract asks for string order.
type Event struct {
	ID         string
	Activity   string
	TS         string
	Resource   string
	Lifecycle  string
	RawPayload string
}

// Object is a typed business object.
type Object struct {
	ID   string
	Type string
}

// Link is one normalized event-object association. Qualifier may be empty.
type Link struct {
	EventID   string
	ObjectID  string
	Qualifier string
}

// Relation is one explicit object-object relation row.
type Relation struct {
	SourceID  string
	TargetID  string
	Qualifier string
}
