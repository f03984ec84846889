// Package oracle wraps the LLM extraction call that turns a raw email body
// into structured Ship/Cargo entries.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/oceanline/broker/engine/domain"
)

// systemPrompt commits to the nested-location ("geocode-optimized") entry
// shape: location/location_from/location_to carry port/sea/ocean
// sub-objects rather than a flat string.
const systemPrompt = `Your task is to process emails in the shipping broker domain and extract any relevant cargo and ship entries. You must respond in a consistent and complete JSON format. Missing, incomplete, or abbreviated information is common in these emails — use context, inference, and domain knowledge to fill gaps where direct information is missing, but leave a field as an empty string if no inference is possible.

Always return a JSON object of the shape {"entries": [...]}. If the email has no relevant entries, return {"entries": []}.

Each entry has a "type" of either "ship" or "cargo", plus:
- cargo: name, status, quantity, location_from, location_to, month, commission, keyword_data
- ship: name, status, capacity, location, month, keyword_data

"location"/"location_from"/"location_to" are objects with "port", "sea", and "ocean" string fields — the nearest port, sea, and ocean inferred from the email, expanding abbreviations. "quantity"/"capacity" are numbers or comma-separated ranges. "commission" is a percentage. "keyword_data" is a short free-text summary of any remaining descriptive detail (cargo type, vessel specifics) useful for similarity matching.`

const model = openai.ChatModelGPT4o
const temperature = 0.2

// Client calls the configured LLM to extract entries from an email body.
type Client struct {
	oai openai.Client
}

// New builds a Client from an API key. Additional request options (e.g.
// option.WithBaseURL, used by tests to point at a local stub) are appended
// after the API key.
func New(apiKey string, opts ...option.RequestOption) *Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{oai: openai.NewClient(all...)}
}

// extractionResponse is the oracle's top-level JSON contract.
type extractionResponse struct {
	Entries []domain.ExtractionEntry `json:"entries"`
}

// Extract sends body to the model and parses its JSON response into
// extraction entries. A JSON decode failure is returned as an error for the
// caller to log to the operator console and drop the unit of work.
func (c *Client) Extract(ctx context.Context, body string) ([]domain.ExtractionEntry, error) {
	entries, _, err := c.ExtractWithRaw(ctx, body)
	return entries, err
}

// ExtractWithRaw behaves like Extract but also returns the model's raw JSON
// response text, for the extraction bundle's audit trail
// (domain.ExtractionBundle.RawOracleReponse).
func (c *Client) ExtractWithRaw(ctx context.Context, body string) ([]domain.ExtractionEntry, string, error) {
	completion, err := c.oai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(body),
		},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("oracle: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, "", fmt.Errorf("oracle: no choices in response")
	}

	raw := completion.Choices[0].Message.Content

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, raw, fmt.Errorf("oracle: parse entries: %w", err)
	}
	for i := range parsed.Entries {
		if parsed.Entries[i].Type != domain.EntryShip && parsed.Entries[i].Type != domain.EntryCargo {
			return nil, raw, fmt.Errorf("%w: %q", domain.ErrUnknownEntryType, parsed.Entries[i].Type)
		}
	}
	return parsed.Entries, raw, nil
}
