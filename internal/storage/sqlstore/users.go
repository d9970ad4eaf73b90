package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
)

var userColumns = []string{"id", "email", "display_name", "phone_number", "photo_url", "created_at", "updated_at"}

// CreateUser inserts a new user into the database. Emails are stored lowercased.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}
	if user.UpdatedAt == 0 {
		user.UpdatedAt = user.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = s.sb.Select("1").From("users").Where(sq.Eq{"id": user.ID}).
		RunWith(tx).QueryRowContext(ctx).Scan(&exists)
	if err == nil {
		return apperror.Conflict("user", user.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check user existence: %w", err)
	}

	_, err = s.sb.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Email, user.DisplayName, user.PhoneNumber, user.PhotoURL, user.CreatedAt, user.UpdatedAt).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.sb.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		RunWith(s.db).QueryRowContext(ctx)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Returns a map of user ID to User object.
// Users that don't exist are omitted from the result.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(ids) == 0 {
		return users, nil
	}

	found, err := s.queryUsers(ctx, s.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": ids}))
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	for _, user := range found {
		users[user.ID] = user
	}
	return users, nil
}

// UpdateUserPhone sets the user's phone number. An empty phone clears it.
func (s *Store) UpdateUserPhone(ctx context.Context, id, phone string) (*models.User, error) {
	res, err := s.sb.Update("users").
		Set("phone_number", phone).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update user phone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check updated rows: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("user", id)
	}
	return s.GetUser(ctx, id)
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// SearchUsers finds users by exact email or display name prefix, case-insensitively.
func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	users, err := s.queryUsers(ctx, s.sb.Select(userColumns...).
		From("users").
		Where(sq.Or{
			sq.Eq{"email": q},
			sq.Expr(`LOWER(display_name) LIKE ? ESCAPE '\'`, likeEscaper.Replace(q)+"%"),
		}).
		OrderBy("display_name", "id").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// IsEmailAllowed reports whether the email is on the registration allowlist.
func (s *Store) IsEmailAllowed(ctx context.Context, email string) (bool, error) {
	var exists int
	err := s.sb.Select("1").
		From("allowed_emails").
		Where(sq.Eq{"email": normalizeEmail(email)}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check allowlist: %w", err)
	}
	return true, nil
}

// AllowEmail adds an email to the registration allowlist. Adding it twice is a no-op.
func (s *Store) AllowEmail(ctx context.Context, email string) error {
	_, err := s.sb.Insert("allowed_emails").
		Columns("email", "created_at").
		Values(normalizeEmail(email), time.Now().Unix()).
		Suffix("ON CONFLICT (email) DO NOTHING").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to allow email: %w", err)
	}
	return nil
}

func (s *Store) queryUsers(ctx context.Context, query sq.SelectBuilder) ([]*models.User, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row sq.RowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PhoneNumber, &user.PhotoURL,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
