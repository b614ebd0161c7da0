package service

import (
	"context"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ReceiptService pre-fills expense drafts from receipt images
type ReceiptService interface {
	// SeedDraft overlays what could be read from the receipt onto fallback.
	// When extraction is unavailable or fails, fallback is returned unchanged
	// and the bool is true.
	SeedDraft(ctx context.Context, data []byte, mimeType string, fallback entity.ExpenseDraft) (entity.ExpenseDraft, *entity.ReceiptDraft, bool)
}

type receiptServiceImpl struct {
	extractor port.ReceiptExtractor
	logger    Logger
}

// NewReceiptService creates a new ReceiptService. extractor may be nil.
func NewReceiptService(extractor port.ReceiptExtractor, logger Logger) ReceiptService {
	return &receiptServiceImpl{extractor: extractor, logger: logger}
}

func (s *receiptServiceImpl) SeedDraft(ctx context.Context, data []byte, mimeType string, fallback entity.ExpenseDraft) (entity.ExpenseDraft, *entity.ReceiptDraft, bool) {
	if s.extractor == nil {
		s.logger.Info("Receipt extraction disabled, keeping manual entry")
		return fallback, nil, true
	}
	if len(data) == 0 {
		return fallback, nil, true
	}

	extracted, err := s.extractor.ExtractReceipt(ctx, data, mimeType)
	if err != nil {
		s.logger.Error("Receipt extraction failed", "error", err, "mime_type", mimeType)
		return fallback, nil, true
	}

	s.logger.Info("Receipt extracted", "mime_type", mimeType, "size", len(data))
	return extracted.Seed(fallback), extracted, false
}
