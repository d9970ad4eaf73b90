package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

var balanceColumns = []string{"id", "expense_id", "payer_id", "payee_id", "amount", "currency", "settled", "created_at", "settled_at"}

// GetBalance retrieves a balance edge by ID.
func (s *Store) GetBalance(ctx context.Context, id string) (*models.BalanceEdge, error) {
	row := s.sb.Select(balanceColumns...).
		From("balances").
		Where(sq.Eq{"id": id}).
		RunWith(s.db).QueryRowContext(ctx)

	edge, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("balance", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return edge, nil
}

// ListBalancesByExpense retrieves every edge owned by an expense, settled or not.
func (s *Store) ListBalancesByExpense(ctx context.Context, expenseID string) ([]*models.BalanceEdge, error) {
	return s.listBalances(ctx, sq.Eq{"expense_id": expenseID})
}

// ListUnsettledBalances retrieves the unsettled edges matching filter.
func (s *Store) ListUnsettledBalances(ctx context.Context, filter storage.BalanceFilter) ([]*models.BalanceEdge, error) {
	where := sq.And{sq.Eq{"settled": false}}
	if filter.UserID != "" {
		where = append(where, sq.Or{
			sq.Eq{"payer_id": filter.UserID},
			sq.Eq{"payee_id": filter.UserID},
		})
	}
	if filter.GroupID != "" {
		where = append(where, sq.Expr("expense_id IN (SELECT id FROM expenses WHERE group_id = ?)", filter.GroupID))
	}
	return s.listBalances(ctx, where)
}

// SettleBalance marks an unsettled edge as settled.
// The update only matches while settled is false, so of several concurrent callers exactly
// one changes a row; every other caller sees zero affected rows and gets AlreadySettled.
func (s *Store) SettleBalance(ctx context.Context, id string, at int64) (*models.BalanceEdge, error) {
	res, err := s.sb.Update("balances").
		Set("settled", true).
		Set("settled_at", at).
		Where(sq.Eq{"id": id, "settled": false}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to settle balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check settled rows: %w", err)
	}
	if n == 0 {
		// Either the edge does not exist or somebody else settled it first.
		if _, err := s.GetBalance(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.AlreadySettled(id)
	}

	return s.GetBalance(ctx, id)
}

func (s *Store) listBalances(ctx context.Context, where sq.Sqlizer) ([]*models.BalanceEdge, error) {
	rows, err := s.sb.Select(balanceColumns...).
		From("balances").
		Where(where).
		OrderBy("created_at", "expense_id", "payee_id", "id").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var edges []*models.BalanceEdge
	for rows.Next() {
		edge, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return edges, nil
}

func scanBalance(row sq.RowScanner) (*models.BalanceEdge, error) {
	edge := &models.BalanceEdge{}
	err := row.Scan(&edge.ID, &edge.ExpenseID, &edge.PayerID, &edge.PayeeID, &edge.Amount,
		&edge.Currency, &edge.Settled, &edge.CreatedAt, &edge.SettledAt)
	if err != nil {
		return nil, err
	}
	return edge, nil
}
