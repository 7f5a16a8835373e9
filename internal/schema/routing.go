package schema

// RoutingKind classifies what the pipeline should do with a question.
type RoutingKind string

const (
	// RoutingConversational answers directly without touching data.
	RoutingConversational RoutingKind = "conversational"
	// RoutingDataOnly fetches data and answers in text, no dashboard.
	RoutingDataOnly RoutingKind = "data_only"
	// RoutingDashboard fetches data and builds a dashboard specification.
	RoutingDashboard RoutingKind = "dashboard"
	// RoutingClarification asks the user to be more specific.
	RoutingClarification RoutingKind = "clarification"
)

// Domain identifies the business area a question belongs to.
type Domain string

const (
	DomainSales         Domain = "sales"
	DomainInventory     Domain = "inventory"
	DomainConversations Domain = "conversations"
	DomainUnknown       Domain = "unknown"
)

// RoutingDecision is the outcome of intent classification for one request.
type RoutingDecision struct {
	Kind       RoutingKind `json:"kind"`
	Domain     Domain      `json:"domain"`
	Confidence float64     `json:"confidence"`
	Rationale  string      `json:"rationale"`
	// DirectAnswer carries the canned reply for conversational hits and
	// the question to ask back for clarifications.
	DirectAnswer string `json:"direct_answer,omitempty"`
}

// NeedsData reports whether the decision requires running catalog queries.
func (r *RoutingDecision) NeedsData() bool {
	return r.Kind == RoutingDataOnly || r.Kind == RoutingDashboard
}
