package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/idrea/receipt-bot/internal/draft"
)

// extractionPrompt asks the model for the recognized receipt fields as JSON.
const extractionPrompt = `You are analyzing a receipt or invoice. Carefully read all text in the image and extract:

1. **What**: a brief description of what was purchased. If multiple items, summarize (e.g. "Office supplies").
2. **Amount**: the final total paid. Extract only the numeric value (e.g. 42.75).
3. **IVA/VAT**: the VAT tax amount if shown. Numeric value only.
4. **Store name**: the most prominent business name on the receipt, without slogans or addresses.
5. **Payment method**: how it was paid (card, cash, ...) if shown.

Return ONLY valid JSON in this exact format:
{
  "what": "Description of purchase",
  "amount": "42.75",
  "iva": "7.50",
  "store_name": "Name of the store",
  "payment_method": "card"
}

Important:
- If a field is not visible on the receipt, omit it entirely. Never invent values.
- If multiple totals exist, choose the final one.
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Extract analyzes a receipt file and returns the fields the model could
// read. The caller bounds the call with ctx; this is the slowest step of a
// conversation turn and must not hold up other users.
func (g *Gemini) Extract(ctx context.Context, data []byte, mimeType string) (draft.Fields, error) {
	pngData, err := preparePNG(data, mimeType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix, and preparePNG always
	// hands back PNG.
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(extractionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	fields, err := parseFields(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing extraction response: %w", err)
	}

	return fields, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
