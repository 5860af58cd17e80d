package backend

import "strings"

// OutcomeKind says what the responder should do with a backend decision.
type OutcomeKind int

const (
	// OutcomeLocked means the backend refused the turn because the
	// conversation is under human control. Nothing is sent.
	OutcomeLocked OutcomeKind = iota
	// OutcomeShowProducts means run the product showcase sequence.
	OutcomeShowProducts
	// OutcomeHandoff means a human needs to take this conversation over,
	// optionally after sending one last automated reply.
	OutcomeHandoff
	// OutcomeReply means send a plain text reply and keep going.
	OutcomeReply
	// OutcomeFailure means the backend errored; send the fallback text and
	// escalate once.
	OutcomeFailure
)

// Outcome is a classified backend decision. Exactly one interpretation
// applies per turn, in the priority order locked > showcase > handoff >
// reply > failure.
type Outcome struct {
	Kind OutcomeKind

	// Reply carries the text for OutcomeReply, or the optional final message
	// for OutcomeHandoff. Empty means nothing to send.
	Reply string

	// Showcase payload, set for OutcomeShowProducts.
	Products []Product
	Summary  string

	// Set for OutcomeShowProducts, OutcomeHandoff, and OutcomeFailure.
	Requirements *Requirements
	Reason       string
}

// Classify maps a raw chat response to exactly one outcome. A nil response
// (transport failure) classifies as a failure.
func Classify(resp *ChatResponse, err error) Outcome {
	if err != nil || resp == nil {
		return Outcome{Kind: OutcomeFailure, Reason: "bot_error"}
	}

	switch resp.Status {
	case StatusLocked:
		return Outcome{Kind: OutcomeLocked}
	case StatusSuccess:
	default:
		// Unknown statuses are treated like errors so a drifting backend
		// degrades to the fallback path instead of silence.
		reason := resp.HandoffReason
		if reason == "" {
			reason = "bot_error"
		}
		return Outcome{Kind: OutcomeFailure, Reason: reason, Requirements: resp.CustomerReqs}
	}

	if strings.TrimSpace(resp.Reply) == ShowcaseMarker {
		return Outcome{
			Kind:         OutcomeShowProducts,
			Products:     resp.Products,
			Summary:      resp.RequirementsSummary,
			Requirements: resp.CustomerReqs,
			Reason:       resp.HandoffReason,
		}
	}

	if resp.NeedsHandoff {
		return Outcome{
			Kind:         OutcomeHandoff,
			Reply:        resp.Reply,
			Requirements: resp.CustomerReqs,
			Reason:       resp.HandoffReason,
		}
	}

	return Outcome{Kind: OutcomeReply, Reply: resp.Reply}
}
