package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
)

var expenseColumns = []string{"id", "description", "amount", "currency", "created_by", "group_id", "date", "created_at"}

// CreateExpense persists an expense, its participants and its balance edges in one transaction.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense, edges []*models.BalanceEdge) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = s.sb.Insert("expenses").
		Columns(expenseColumns...).
		Values(expense.ID, expense.Description, expense.Amount, expense.Currency, expense.CreatedBy,
			nullString(expense.GroupID), expense.Date, expense.CreatedAt).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	if err := s.fail("create_expense.expense"); err != nil {
		return err
	}

	for i, userID := range expense.Participants {
		_, err = s.sb.Insert("expense_participants").
			Columns("expense_id", "user_id", "seq").
			Values(expense.ID, userID, i).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	if err := s.fail("create_expense.participants"); err != nil {
		return err
	}

	for _, edge := range edges {
		if edge.ID == "" {
			edge.ID = uuid.New().String()
		}
		edge.ExpenseID = expense.ID
		if edge.CreatedAt == 0 {
			edge.CreatedAt = expense.CreatedAt
		}
		if edge.Currency == "" {
			edge.Currency = expense.Currency
		}

		_, err = s.sb.Insert("balances").
			Columns(balanceColumns...).
			Values(edge.ID, edge.ExpenseID, edge.PayerID, edge.PayeeID, edge.Amount, edge.Currency,
				edge.Settled, edge.CreatedAt, edge.SettledAt).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		if err := s.fail("create_expense.balance"); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	expense.Settled = models.DeriveSettled(edges)
	return nil
}

// GetExpense retrieves an expense by ID, including its participants.
func (s *Store) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	row := s.sb.Select(expenseColumns...).
		From("expenses").
		Where(sq.Eq{"id": id}).
		RunWith(s.db).QueryRowContext(ctx)

	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("expense", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadExpenseDetails(ctx, []*models.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByParticipant lists every expense the user takes part in, newest date first.
func (s *Store) ListExpensesByParticipant(ctx context.Context, userID, groupID string) ([]*models.Expense, error) {
	cols := make([]string, len(expenseColumns))
	for i, c := range expenseColumns {
		cols[i] = "e." + c
	}

	query := s.sb.Select(cols...).
		From("expenses e").
		Join("expense_participants p ON p.expense_id = e.id").
		Where(sq.Eq{"p.user_id": userID}).
		OrderBy("e.date DESC", "e.created_at DESC", "e.id")
	if groupID != "" {
		query = query.Where(sq.Eq{"e.group_id": groupID})
	}

	expenses, err := s.queryExpenses(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by participant: %w", err)
	}
	return expenses, nil
}

// ListExpensesCreatedBetween lists expenses with from <= created_at < to, oldest first.
func (s *Store) ListExpensesCreatedBetween(ctx context.Context, from, to int64) ([]*models.Expense, error) {
	query := s.sb.Select(expenseColumns...).
		From("expenses").
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.Lt{"created_at": to}).
		OrderBy("created_at", "id")

	expenses, err := s.queryExpenses(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by creation time: %w", err)
	}
	return expenses, nil
}

// GetExpenseDescriptions maps expense IDs to their descriptions in one query.
func (s *Store) GetExpenseDescriptions(ctx context.Context, ids []string) (map[string]string, error) {
	descriptions := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return descriptions, nil
	}

	rows, err := s.sb.Select("id", "description").
		From("expenses").
		Where(sq.Eq{"id": ids}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense descriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, description string
		if err := rows.Scan(&id, &description); err != nil {
			return nil, fmt.Errorf("failed to scan expense description: %w", err)
		}
		descriptions[id] = description
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense descriptions: %w", err)
	}
	return descriptions, nil
}

// DeleteExpense removes an expense and everything it owns.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = s.sb.Select("1").From("expenses").Where(sq.Eq{"id": id}).
		RunWith(tx).QueryRowContext(ctx).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("expense", id)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense existence: %w", err)
	}

	if _, err := s.sb.Delete("balances").Where(sq.Eq{"expense_id": id}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete balances: %w", err)
	}
	if err := s.fail("delete_expense.balances"); err != nil {
		return err
	}

	if _, err := s.sb.Delete("expense_participants").Where(sq.Eq{"expense_id": id}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}
	if _, err := s.sb.Delete("expenses").Where(sq.Eq{"id": id}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryExpenses runs query and loads the details of every returned expense.
// Rows are fully read and closed before the detail queries run.
func (s *Store) queryExpenses(ctx context.Context, query sq.SelectBuilder) ([]*models.Expense, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}

	var expenses []*models.Expense
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

	if err := s.loadExpenseDetails(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// loadExpenseDetails fills Participants and the derived Settled flag.
func (s *Store) loadExpenseDetails(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	byID := make(map[string]*models.Expense, len(expenses))
	ids := make([]string, len(expenses))
	for i, e := range expenses {
		byID[e.ID] = e
		ids[i] = e.ID
		e.Participants = nil
	}

	rows, err := s.sb.Select("expense_id", "user_id").
		From("expense_participants").
		Where(sq.Eq{"expense_id": ids}).
		OrderBy("expense_id", "seq").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID, userID string
		if err := rows.Scan(&expenseID, &userID); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		if e, ok := byID[expenseID]; ok {
			e.Participants = append(e.Participants, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}
	rows.Close()

	edges, err := s.listBalances(ctx, sq.Eq{"expense_id": ids})
	if err != nil {
		return err
	}
	grouped := make(map[string][]*models.BalanceEdge)
	for _, edge := range edges {
		grouped[edge.ExpenseID] = append(grouped[edge.ExpenseID], edge)
	}
	for _, e := range expenses {
		e.Settled = models.DeriveSettled(grouped[e.ID])
	}
	return nil
}

func scanExpense(row sq.RowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var groupID sql.NullString
	err := row.Scan(&expense.ID, &expense.Description, &expense.Amount, &expense.Currency,
		&expense.CreatedBy, &groupID, &expense.Date, &expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		expense.GroupID = groupID.String
	}
	return expense, nil
}
