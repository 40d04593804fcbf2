package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LucsL0pes/mini-gymatch/internal/utils"
)

// ErrDisabled is returned when no API key is configured. Callers must treat
// it as an expected condition, not a failure.
var ErrDisabled = errors.New("AI proof validation is not configured")

// Verdict is the structured outcome of a classification call.
type Verdict struct {
	Approved        bool
	MatchedKeywords []string
	Reason          string
	Confidence      *float64
}

type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType, profileID string) (*Verdict, error)
}

// Config is passed in explicitly so tests can substitute deterministic
// fixtures instead of reading the process environment.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Keywords []string
}

type openAIClassifier struct {
	cfg    Config
	logger *utils.Logger
	client *http.Client
}

func NewOpenAIClassifier(cfg Config, logger *utils.Logger) Classifier {
	return &openAIClassifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type classifyRequest struct {
	Model           string         `json:"model"`
	MaxOutputTokens int            `json:"max_output_tokens"`
	Input           []inputMessage `json:"input"`
	ResponseFormat  responseFormat `json:"response_format"`
}

type inputMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type classifyResponse struct {
	Output []outputBlock `json:"output"`
}

type outputBlock struct {
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type string          `json:"type"`
	JSON json.RawMessage `json:"json"`
}

type verdictPayload struct {
	Approved        bool     `json:"approved"`
	MatchedKeywords []string `json:"matched_keywords"`
	Reason          string   `json:"reason"`
	Confidence      *float64 `json:"confidence"`
}

var verdictSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"approved": map[string]any{"type": "boolean"},
		"matched_keywords": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"reason":     map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
	"required": []string{"approved", "matched_keywords", "reason"},
}

func (c *openAIClassifier) Classify(ctx context.Context, image []byte, mimeType, profileID string) (*Verdict, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	keywords := make([]string, 0, len(c.cfg.Keywords))
	for _, keyword := range c.cfg.Keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords configured for proof validation")
	}

	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	systemPrompt := "You validate gym enrollment proof documents. " +
		"Approve only when the image shows clear visible text evidence that the person is enrolled. " +
		"Use context to recognize synonyms or abbreviations of the target keywords. " +
		"Always answer with JSON matching the provided schema."
	if profileID != "" {
		systemPrompt += fmt.Sprintf(" Profile under review: %s.", profileID)
	}

	reqBody := classifyRequest{
		Model:           c.cfg.Model,
		MaxOutputTokens: 300,
		Input: []inputMessage{
			{
				Role: "system",
				Content: []contentBlock{
					{Type: "text", Text: systemPrompt},
				},
			},
			{
				Role: "user",
				Content: []contentBlock{
					{
						Type: "input_text",
						Text: fmt.Sprintf("Analyze the proof and tell whether it confirms gym enrollment. Target keywords: %s.", strings.Join(keywords, ", ")),
					},
					{
						Type: "input_text",
						Text: "Also report which keywords (or variations) were found, a short reason and a confidence level.",
					},
					{
						Type:     "input_image",
						ImageURL: imageURL,
					},
				},
			},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   "GymProofValidation",
				Schema: verdictSchema,
				Strict: true,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Error("OpenAI API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	var apiResp classifyResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	parsed := extractVerdict(&apiResp)
	if parsed == nil {
		return nil, fmt.Errorf("could not parse AI response for proof validation")
	}

	matched := make([]string, 0, len(parsed.MatchedKeywords))
	for _, keyword := range parsed.MatchedKeywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			matched = append(matched, trimmed)
		}
	}

	return &Verdict{
		Approved:        parsed.Approved,
		MatchedKeywords: matched,
		Reason:          strings.TrimSpace(parsed.Reason),
		Confidence:      parsed.Confidence,
	}, nil
}

// extractVerdict returns the first json_schema content block, or nil when the
// response carries none.
func extractVerdict(resp *classifyResponse) *verdictPayload {
	for _, block := range resp.Output {
		for _, piece := range block.Content {
			if piece.Type != "json_schema" || len(piece.JSON) == 0 {
				continue
			}
			var payload verdictPayload
			if err := json.Unmarshal(piece.JSON, &payload); err != nil {
				continue
			}
			return &payload
		}
	}
	return nil
}
