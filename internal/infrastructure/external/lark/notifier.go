package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"go.uber.org/zap"
)

// receiveIDTypeEmail addresses Lark users by their registered email
const receiveIDTypeEmail = "email"

// ApproverNotifier implements port.Notifier with Lark text messages
type ApproverNotifier struct {
	sender  MessageSender
	linkURL string // base URL of the expense UI, optional
	logger  *zap.Logger
}

// NewApproverNotifier creates a notifier. linkURL, when set, is used to add
// a link to the expense in each message.
func NewApproverNotifier(sender MessageSender, linkURL string, logger *zap.Logger) *ApproverNotifier {
	return &ApproverNotifier{
		sender:  sender,
		linkURL: strings.TrimRight(linkURL, "/"),
		logger:  logger,
	}
}

// NotifyApprover messages the approver about the expense waiting for them
func (n *ApproverNotifier) NotifyApprover(ctx context.Context, notice port.ApproverNotice) error {
	if notice.Approver == nil || notice.Approver.Email == "" {
		return fmt.Errorf("approver has no email address")
	}
	if notice.Expense == nil {
		return fmt.Errorf("notice has no expense")
	}

	content, err := json.Marshal(map[string]string{"text": n.messageText(notice)})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, receiveIDTypeEmail, notice.Approver.Email, "text", string(content))
	if err != nil {
		return err
	}

	n.logger.Info("Approver notified via Lark",
		zap.String("expense_id", notice.Expense.ID),
		zap.String("approver_id", notice.Approver.ID),
		zap.String("message_id", messageID))
	return nil
}

func (n *ApproverNotifier) messageText(notice port.ApproverNotice) string {
	e := notice.Expense
	submitter := e.UserID
	if notice.Submitter != nil && notice.Submitter.Name != "" {
		submitter = notice.Submitter.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Expense awaiting your approval\n")
	fmt.Fprintf(&b, "Submitted by: %s\n", submitter)
	fmt.Fprintf(&b, "Amount: %s %s\n", e.Amount.StringFixed(2), e.Currency)
	fmt.Fprintf(&b, "Category: %s\n", e.Category)
	fmt.Fprintf(&b, "Date: %s\n", e.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Description: %s", e.Description)
	if n.linkURL != "" {
		fmt.Fprintf(&b, "\n%s/expenses/%s", n.linkURL, e.ID)
	}
	return b.String()
}

var _ port.Notifier = (*ApproverNotifier)(nil)
