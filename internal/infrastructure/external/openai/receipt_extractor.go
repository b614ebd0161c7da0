package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/shopspring/decimal"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxPDFPages limits how many PDF pages are sent to the model
const maxPDFPages = 2

// ChatClient is the subset of the OpenAI client used here
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ReceiptExtractor implements port.ReceiptExtractor with a vision model
type ReceiptExtractor struct {
	client    ChatClient
	model     string
	prompts   *PromptConfig
	renderPDF func(data []byte, maxPages int) ([][]byte, error)
	logger    *zap.Logger
}

// receiptFields is the JSON object the model is asked to return
type receiptFields struct {
	Amount      *decimal.Decimal `json:"amount"`
	Currency    *string          `json:"currency"`
	Date        *string          `json:"date"`
	Vendor      *string          `json:"vendor"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
}

// NewReceiptExtractor creates an extractor backed by the OpenAI API.
// A positive timeout bounds each API request.
func NewReceiptExtractor(apiKey, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *ReceiptExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return NewReceiptExtractorWithClient(openai.NewClientWithConfig(cfg), model, prompts, logger)
}

// NewReceiptExtractorWithClient creates an extractor over an existing client
func NewReceiptExtractorWithClient(client ChatClient, model string, prompts *PromptConfig, logger *zap.Logger) *ReceiptExtractor {
	if model == "" {
		model = openai.GPT4o
	}
	return &ReceiptExtractor{
		client:    client,
		model:     model,
		prompts:   prompts,
		renderPDF: renderPDF,
		logger:    logger,
	}
}

// ExtractReceipt reads expense fields from an image or PDF receipt.
// Fields the model could not read are left nil.
func (x *ReceiptExtractor) ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*entity.ReceiptDraft, error) {
	x.logger.Info("Extracting receipt with Vision API",
		zap.String("mime_type", mimeType),
		zap.Int("size", len(data)))

	images, imageType, err := x.images(data, mimeType)
	if err != nil {
		return nil, err
	}

	prompt, err := renderTemplate(x.prompts.ReceiptExtraction.UserTemplate, map[string]interface{}{
		"Categories": entity.Categories,
	})
	if err != nil {
		return nil, err
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", imageType, base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := x.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       x.model,
		MaxTokens:   x.prompts.ReceiptExtraction.MaxTokens,
		Temperature: x.prompts.ReceiptExtraction.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: x.prompts.ReceiptExtraction.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		x.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Vision API")
	}

	draft, err := parseReceipt(resp.Choices[0].Message.Content)
	if err != nil {
		x.logger.Error("Failed to parse Vision API response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}

	x.logger.Info("Receipt extracted",
		zap.Bool("has_amount", draft.Amount != nil),
		zap.Bool("has_date", draft.Date != nil))
	return draft, nil
}

// images returns the pictures to send and their MIME type
func (x *ReceiptExtractor) images(data []byte, mimeType string) ([][]byte, string, error) {
	switch strings.ToLower(mimeType) {
	case "application/pdf":
		pages, err := x.renderPDF(data, maxPDFPages)
		if err != nil {
			x.logger.Error("Failed to render PDF receipt", zap.Error(err))
			return nil, "", err
		}
		return pages, "image/jpeg", nil
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif":
		return [][]byte{data}, mimeType, nil
	}
	return nil, "", fmt.Errorf("unsupported receipt type: %s", mimeType)
}

func parseReceipt(content string) (*entity.ReceiptDraft, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var fields receiptFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	draft := &entity.ReceiptDraft{
		Vendor:      nonEmpty(fields.Vendor),
		Description: nonEmpty(fields.Description),
		Category:    nonEmpty(fields.Category),
	}
	if fields.Amount != nil && fields.Amount.IsPositive() {
		draft.Amount = fields.Amount
	}
	if code := nonEmpty(fields.Currency); code != nil {
		normalized := currency.NormalizeCode(*code)
		if currency.ValidCode(normalized) {
			draft.Currency = &normalized
		}
	}
	if d := nonEmpty(fields.Date); d != nil {
		if parsed, err := time.Parse("2006-01-02", *d); err == nil {
			draft.Date = &parsed
		}
	}
	return draft, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// extractJSON returns the first balanced JSON object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

var _ port.ReceiptExtractor = (*ReceiptExtractor)(nil)
