package port

import (
	"context"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ReceiptExtractor reads expense fields from a receipt image or PDF
type ReceiptExtractor interface {
	ExtractReceipt(ctx context.Context, data []byte, mimeType string) (*entity.ReceiptDraft, error)
}

// ApproverNotice tells an approver that an expense waits for them
type ApproverNotice struct {
	Expense   *entity.Expense
	Submitter *entity.User
	Approver  *entity.User
}

// Notifier delivers approver notices. Delivery is best effort.
type Notifier interface {
	NotifyApprover(ctx context.Context, notice ApproverNotice) error
}
