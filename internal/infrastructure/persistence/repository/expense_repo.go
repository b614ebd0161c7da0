package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ExpenseRepository implements port.ExpenseRepository.
// Approval history lives in approval_entries, one row per decision, ordered by seq.
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

const expenseColumns = `id, user_id, amount, currency, category, description, vendor, expense_date, status, created_at`

// Create inserts a new expense together with any history it already carries
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO expenses (
				id, user_id, amount, currency, category, description, vendor,
				expense_date, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err := r.db.Executor(txCtx).ExecContext(txCtx, query,
			expense.ID,
			expense.UserID,
			expense.Amount.String(),
			expense.Currency,
			expense.Category,
			expense.Description,
			expense.Vendor,
			expense.Date.UTC(),
			string(expense.Status),
			expense.CreatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create expense", zap.String("id", expense.ID), zap.Error(err))
			return fmt.Errorf("failed to create expense: %w", err)
		}

		for i, entry := range expense.ApprovalHistory {
			if err := r.insertEntry(txCtx, expense.ID, i+1, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves an expense and its full history
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	history, err := r.loadHistory(ctx, `expense_id = ?`, []interface{}{id})
	if err != nil {
		return nil, err
	}
	expense.ApprovalHistory = history[id]
	if expense.ApprovalHistory == nil {
		expense.ApprovalHistory = []entity.ApprovalEntry{}
	}
	return expense, nil
}

// List retrieves expenses matching the filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if filter.UserIDs != nil && len(filter.UserIDs) == 0 {
		return []*entity.Expense{}, nil
	}

	where, args := expenseWhere(filter)
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY expense_date DESC, created_at DESC, id`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	expenses := make([]*entity.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	if len(expenses) == 0 {
		return expenses, nil
	}

	sub := `expense_id IN (SELECT id FROM expenses`
	if where != "" {
		sub += ` WHERE ` + where
	}
	sub += `)`
	history, err := r.loadHistory(ctx, sub, args)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		e.ApprovalHistory = history[e.ID]
		if e.ApprovalHistory == nil {
			e.ApprovalHistory = []entity.ApprovalEntry{}
		}
	}
	return expenses, nil
}

// AppendDecision adds entry after the existing history and updates the status
func (r *ExpenseRepository) AppendDecision(ctx context.Context, expenseID string, entry entity.ApprovalEntry, status entity.ExpenseStatus) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		var next int
		err := r.db.Executor(txCtx).QueryRowContext(txCtx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM approval_entries WHERE expense_id = ?`,
			expenseID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to read history sequence: %w", err)
		}

		if err := r.insertEntry(txCtx, expenseID, next, entry); err != nil {
			return err
		}

		result, err := r.db.Executor(txCtx).ExecContext(txCtx,
			`UPDATE expenses SET status = ? WHERE id = ?`,
			string(status), expenseID,
		)
		if err != nil {
			r.logger.Error("Failed to update expense status", zap.String("id", expenseID), zap.Error(err))
			return fmt.Errorf("failed to update expense status: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("expense not found: %s", expenseID)
		}
		return nil
	})
}

func (r *ExpenseRepository) insertEntry(ctx context.Context, expenseID string, seq int, entry entity.ApprovalEntry) error {
	query := `
		INSERT INTO approval_entries (
			expense_id, seq, approver_id, approver_role, decision, comment, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		expenseID,
		seq,
		entry.ApproverID,
		string(entry.ApproverRole),
		string(entry.Decision),
		entry.Comment,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert approval entry",
			zap.String("expense_id", expenseID),
			zap.Int("seq", seq),
			zap.Error(err))
		return fmt.Errorf("failed to insert approval entry: %w", err)
	}
	return nil
}

// loadHistory returns approval entries grouped by expense id, in seq order
func (r *ExpenseRepository) loadHistory(ctx context.Context, where string, args []interface{}) (map[string][]entity.ApprovalEntry, error) {
	query := `
		SELECT expense_id, approver_id, approver_role, decision, comment, decided_at
		FROM approval_entries
		WHERE ` + where + `
		ORDER BY expense_id, seq
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load approval history", zap.Error(err))
		return nil, fmt.Errorf("failed to load approval history: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]entity.ApprovalEntry)
	for rows.Next() {
		var expenseID, role, decision string
		var entry entity.ApprovalEntry
		if err := rows.Scan(&expenseID, &entry.ApproverID, &role, &decision, &entry.Comment, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan approval entry: %w", err)
		}
		entry.ApproverRole = entity.Role(role)
		entry.Decision = entity.Decision(decision)
		history[expenseID] = append(history[expenseID], entry)
	}
	return history, rows.Err()
}

func expenseWhere(filter entity.ExpenseFilter) (string, []interface{}) {
	var where []string
	var args []interface{}

	if len(filter.UserIDs) > 0 {
		placeholders := make([]string, len(filter.UserIDs))
		for i, id := range filter.UserIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, "user_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	return strings.Join(where, " AND "), args
}

func scanExpense(s scanner) (*entity.Expense, error) {
	var e entity.Expense
	var status string

	if err := s.Scan(
		&e.ID,
		&e.UserID,
		&e.Amount,
		&e.Currency,
		&e.Category,
		&e.Description,
		&e.Vendor,
		&e.Date,
		&status,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = entity.ExpenseStatus(status)
	return &e, nil
}
