package draft

import (
	"fmt"
	"strings"
)

// Placeholder shown for fields without a value.
const Placeholder = "not set"

// fieldLabels are the WhatsApp-facing labels, bolded with asterisks.
var fieldLabels = map[string]string{
	FieldWhat:          "*What*",
	FieldAmount:        "*Amount* (euros)",
	FieldVAT:           "*IVA* (euros)",
	FieldStore:         "*Store name*",
	FieldPaymentMethod: "*Payment method*",
	FieldChargeTo:      "*Charge to*",
	FieldComments:      "*Comments*",
}

// Label returns the display label for a field name.
func Label(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

// Render produces the summary message for a draft. It is deterministic:
// every recognized field is listed in order, with a placeholder for unset
// values, followed by the confirm/cancel instruction.
func Render(d *ReceiptDraft) string {
	var b strings.Builder
	for _, field := range FieldOrder {
		value := d.Fields[field]
		if value == "" {
			value = Placeholder
		}
		fmt.Fprintf(&b, "%s: %s\n", fieldLabels[field], value)
	}
	b.WriteString("\nReply *yes* to confirm or *no* to cancel.\n")
	b.WriteString(`To fix a field, send e.g. "amount: 42.50".`)
	return b.String()
}
