package dialogue

import (
	"fmt"

	"github.com/idrea/receipt-bot/internal/draft"
)

// Keywords understood by the controller, matched case-insensitively.
var (
	confirmWords = map[string]bool{"yes": true, "confirm": true}
	cancelWords  = map[string]bool{"no": true, "cancel": true}
	manualWords  = map[string]bool{"manual": true, "entry": true}
	skipWords    = map[string]bool{"skip": true, "-": true}
)

// fieldQuestions are the one-at-a-time prompts used during manual entry.
var fieldQuestions = map[string]string{
	draft.FieldWhat:          "What was purchased?",
	draft.FieldAmount:        "What was the total amount (euros)?",
	draft.FieldVAT:           "How much was the IVA (euros)?",
	draft.FieldStore:         "What is the store name?",
	draft.FieldPaymentMethod: "How was it paid?",
	draft.FieldChargeTo:      "Who should this be charged to?",
	draft.FieldComments:      "Any comments?",
}

const (
	msgIdleHelp = "Send me a photo or PDF of a receipt and I'll read it for you.\n" +
		"Or reply *manual* to type the details yourself.\n\n" +
		"Knock-Knock! _Who's there?_ The IT guy! 👋"

	msgArchiveFailed = "Sorry, I couldn't save your file. Please send it again."

	msgExtractionFailed = "I couldn't read that receipt automatically.\n" +
		"Let's fill it in together - answer each question, or reply *skip* to leave one blank.\n" +
		"You can also just send a clearer photo."

	msgCommitFailed = "Sorry, I couldn't record your receipt just now. " +
		"Please reply *yes* again in a moment to retry."

	msgCancelled = "Okay, I've discarded that receipt."

	msgClarify = "I didn't catch that. Reply *yes* to confirm, *no* to cancel, " +
		`or correct a field like "amount: 42.50".`
)

func msgFieldPrompt(field string) string {
	return fieldQuestions[field] + " (reply *skip* to leave blank)"
}

func msgSummary(d *draft.ReceiptDraft) string {
	return "Here's what I have:\n\n" + draft.Render(d)
}

func msgConfirmed(number int) string {
	return fmt.Sprintf("Receipt added to our list! (#%d)", number)
}

func msgUnknownField(name string) string {
	return fmt.Sprintf("I don't track a field called %q.\n\n%s", name, msgClarify)
}

func msgBadAmount(field string) string {
	return fmt.Sprintf("%s needs to be a number, like 42.50. Please try again.", draft.Label(field))
}
