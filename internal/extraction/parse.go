package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/idrea/receipt-bot/internal/draft"
)

// responseAliases maps the field names vision models actually emit to the
// canonical draft field names.
var responseAliases = map[string]string{
	"what":           draft.FieldWhat,
	"description":    draft.FieldWhat,
	"amount":         draft.FieldAmount,
	"total_amount":   draft.FieldAmount,
	"total":          draft.FieldAmount,
	"iva":            draft.FieldVAT,
	"vat":            draft.FieldVAT,
	"iva/vat_amount": draft.FieldVAT,
	"store":          draft.FieldStore,
	"store_name":     draft.FieldStore,
	"payment_method": draft.FieldPaymentMethod,
	"charge_to":      draft.FieldChargeTo,
	"comments":       draft.FieldComments,
}

// parseFields parses the model's JSON response into draft fields. Models
// wander on field names and wrap output in markdown fences, so parsing is
// deliberately forgiving; what it never does is fabricate a value.
func parseFields(text string) (draft.Fields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Keep only the outermost JSON object.
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields := make(draft.Fields)
	for key, value := range raw {
		normalized := strings.Join(strings.Fields(strings.ToLower(key)), "_")
		field, ok := responseAliases[normalized]
		if !ok {
			continue
		}

		var s string
		switch v := value.(type) {
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
		default:
			continue
		}
		if s == "" {
			continue
		}

		if draft.Numeric(field) {
			normalized, err := draft.NormalizeAmount(s)
			if err != nil {
				// An unparseable amount stays unset rather than
				// polluting the draft.
				continue
			}
			s = normalized
		}
		fields[field] = s
	}

	return fields, nil
}
