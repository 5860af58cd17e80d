package responder

// Fixed customer-facing texts. The backend owns conversational wording;
// these are the only messages the bot composes itself.
const (
	// showcaseCaptionFmt captions each product image: index, name, unit price.
	showcaseCaptionFmt = "%d. %s\n₹%d/piece"

	closingText = "Our team will contact you shortly to help with your selection.\n\nThank you! 🙏"

	checkingText = "Let me check the available options for you. Our team will get back to you shortly. 🙏"

	failureText = "Sorry, we are facing a technical issue. Our team will follow up with you shortly.\n\nThank you! 🙏"

	// imageFallbackNote is appended to the caption when an image could not be
	// delivered and the caption goes out as plain text instead.
	imageFallbackNote = "(image could not be sent)"

	escalationHeader = "🔔 Customer needs attention"
)
