// Package backend is the HTTP client for the decision backend: the external
// LLM-driven service that turns one aggregated customer turn into a
// structured response decision. The backend owns natural-language
// understanding, the product catalog, and conversation history; this package
// only speaks its wire contract and classifies what came back.
package backend

// ShowcaseMarker is the reserved reply value the backend uses to signal
// "send the product showcase" instead of a plain text reply.
const ShowcaseMarker = "[SEND_PRODUCT_IMAGES_WITH_SUMMARY]"

// ImageMarker is prepended to a turn when the customer sent an image. The
// backend hands such turns off to a human (it cannot identify products from
// pictures).
const ImageMarker = "[IMAGE_SENT]"

// Backend status values on the wire.
const (
	StatusSuccess = "success"
	StatusLocked  = "locked"
	StatusError   = "error"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Status              string        `json:"status"`
	Reply               string        `json:"reply"`
	NeedsHandoff        bool          `json:"needs_handoff"`
	Products            []Product     `json:"products"`
	RequirementsSummary string        `json:"requirements_summary"`
	CustomerReqs        *Requirements `json:"customer_requirements"`
	HandoffReason       string        `json:"handoff_reason"`
	LockedAt            string        `json:"locked_at,omitempty"`
	LockedBy            string        `json:"locked_by,omitempty"`
}

// Product is one recommended catalog item.
type Product struct {
	Name     string `json:"name"`
	Price    int    `json:"price"` // rupees per piece at the customer's quantity tier
	Category string `json:"category,omitempty"`
	MinOrder int    `json:"min_order,omitempty"`
	ImageURL string `json:"image_url"`
}

// Requirements is the backend's structured extraction of what the customer
// asked for. Fields are nil when not yet known.
type Requirements struct {
	Quantity       *int   `json:"quantity"`
	BudgetPerPiece *int   `json:"budget_per_piece"`
	Timeline       string `json:"timeline,omitempty"`
	Location       string `json:"location,omitempty"`
}

// LockRequest is the body of POST /lock_conversation.
type LockRequest struct {
	UserID string `json:"user_id"`
}
