package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/settleup/internal/apperror"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// dinner creates "alice paid 100 for alice, bob, charlie" with two 50 edges.
func dinner(t *testing.T, store *Store, date int64) (*models.Expense, []*models.BalanceEdge) {
	t.Helper()
	expense := &models.Expense{
		Description:  "Dinner",
		Amount:       dec("100"),
		Currency:     "USD",
		CreatedBy:    "alice",
		Participants: []string{"alice", "bob", "charlie"},
		Date:         date,
	}
	edges := []*models.BalanceEdge{
		{PayerID: "alice", PayeeID: "bob", Amount: dec("50")},
		{PayerID: "alice", PayeeID: "charlie", Amount: dec("50")},
	}
	require.NoError(t, store.CreateExpense(context.Background(), expense, edges))
	return expense, edges
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestCreateAndGetExpense(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense, edges := dinner(t, store, 1700000000)

	assert.NotEmpty(t, expense.ID)
	assert.NotZero(t, expense.CreatedAt)
	assert.False(t, expense.Settled)
	for _, e := range edges {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, expense.ID, e.ExpenseID)
		assert.Equal(t, "USD", e.Currency)
	}

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dinner", got.Description)
	assert.True(t, got.Amount.Equal(dec("100")), "amount = %s", got.Amount)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, got.Participants)
	assert.Equal(t, int64(1700000000), got.Date)
	assert.Empty(t, got.GroupID)
	assert.False(t, got.Settled)

	stored, err := store.ListBalancesByExpense(ctx, expense.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, e := range stored {
		assert.Equal(t, "alice", e.PayerID)
		assert.True(t, e.Amount.Equal(dec("50")))
		assert.False(t, e.Settled)
	}
}

func TestDecimalAmountsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense := &models.Expense{
		Description:  "Taxi",
		Amount:       dec("100.00"),
		Currency:     "USD",
		CreatedBy:    "alice",
		Participants: []string{"alice", "bob", "charlie", "dave"},
	}
	edges := []*models.BalanceEdge{
		{PayerID: "alice", PayeeID: "bob", Amount: dec("33.33")},
		{PayerID: "alice", PayeeID: "charlie", Amount: dec("33.33")},
		{PayerID: "alice", PayeeID: "dave", Amount: dec("33.33")},
	}
	require.NoError(t, store.CreateExpense(ctx, expense, edges))

	stored, err := store.ListBalancesByExpense(ctx, expense.ID)
	require.NoError(t, err)
	for _, e := range stored {
		assert.Equal(t, "33.33", e.Amount.StringFixed(2))
	}
}

func TestGetExpenseNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetExpense(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "error = %v", err)
}

func TestCreateExpenseIsAtomic(t *testing.T) {
	for _, step := range []string{"create_expense.expense", "create_expense.participants", "create_expense.balance"} {
		t.Run(step, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()
			injected := errors.New("injected failure")
			store.failpoint = func(s string) error {
				if s == step {
					return injected
				}
				return nil
			}

			expense := &models.Expense{
				ID:           "e1",
				Description:  "Dinner",
				Amount:       dec("100"),
				Currency:     "USD",
				CreatedBy:    "alice",
				Participants: []string{"alice", "bob", "charlie"},
			}
			edges := []*models.BalanceEdge{
				{PayerID: "alice", PayeeID: "bob", Amount: dec("50")},
				{PayerID: "alice", PayeeID: "charlie", Amount: dec("50")},
			}

			err := store.CreateExpense(ctx, expense, edges)
			require.ErrorIs(t, err, injected)

			_, err = store.GetExpense(ctx, "e1")
			assert.ErrorIs(t, err, apperror.ErrNotFound)

			left, err := store.ListBalancesByExpense(ctx, "e1")
			require.NoError(t, err)
			assert.Empty(t, left)

			listed, err := store.ListExpensesByParticipant(ctx, "bob", "")
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense, _ := dinner(t, store, 0)

	require.NoError(t, store.DeleteExpense(ctx, expense.ID))

	_, err := store.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	left, err := store.ListBalancesByExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	err = store.DeleteExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteExpenseIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense, _ := dinner(t, store, 0)

	injected := errors.New("injected failure")
	store.failpoint = func(step string) error {
		if step == "delete_expense.balances" {
			return injected
		}
		return nil
	}

	err := store.DeleteExpense(ctx, expense.ID)
	require.ErrorIs(t, err, injected)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 3)

	edges, err := store.ListBalancesByExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestListExpensesByParticipant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Trip", Members: []string{"alice", "bob"}}))

	older, _ := dinner(t, store, 1000)
	newer, _ := dinner(t, store, 2000)
	grouped := &models.Expense{
		Description:  "Fuel",
		Amount:       dec("40"),
		Currency:     "USD",
		CreatedBy:    "bob",
		Participants: []string{"bob", "alice"},
		GroupID:      "g1",
		Date:         1500,
	}
	require.NoError(t, store.CreateExpense(ctx, grouped, []*models.BalanceEdge{
		{PayerID: "bob", PayeeID: "alice", Amount: dec("20")},
	}))

	t.Run("newest date first", func(t *testing.T) {
		got, err := store.ListExpensesByParticipant(ctx, "alice", "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, newer.ID, got[0].ID)
		assert.Equal(t, grouped.ID, got[1].ID)
		assert.Equal(t, older.ID, got[2].ID)
		assert.Equal(t, []string{"bob", "alice"}, got[1].Participants)
	})

	t.Run("group filter", func(t *testing.T) {
		got, err := store.ListExpensesByParticipant(ctx, "alice", "g1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "g1", got[0].GroupID)
	})

	t.Run("non participant sees nothing", func(t *testing.T) {
		got, err := store.ListExpensesByParticipant(ctx, "mallory", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListExpensesCreatedBetween(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, createdAt := range []int64{100, 200, 300} {
		expense := &models.Expense{
			Description:  "Lunch",
			Amount:       dec("10"),
			Currency:     "USD",
			CreatedBy:    "alice",
			Participants: []string{"alice", "bob"},
			CreatedAt:    createdAt,
		}
		require.NoError(t, store.CreateExpense(ctx, expense, []*models.BalanceEdge{
			{PayerID: "alice", PayeeID: "bob", Amount: dec("5")},
		}))
	}

	got, err := store.ListExpensesCreatedBetween(ctx, 100, 300)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].CreatedAt)
	assert.Equal(t, int64(200), got[1].CreatedAt)
}

func TestGetExpenseDescriptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense, _ := dinner(t, store, 0)

	got, err := store.GetExpenseDescriptions(ctx, []string{expense.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{expense.ID: expense.Description}, got)

	got, err = store.GetExpenseDescriptions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettleBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense, edges := dinner(t, store, 0)

	settled, err := store.SettleBalance(ctx, edges[0].ID, 1234)
	require.NoError(t, err)
	assert.True(t, settled.Settled)
	assert.Equal(t, int64(1234), settled.SettledAt)

	_, err = store.SettleBalance(ctx, edges[0].ID, 5678)
	assert.ErrorIs(t, err, apperror.ErrAlreadySettled)

	_, err = store.SettleBalance(ctx, "missing", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.False(t, got.Settled, "one edge is still open")

	_, err = store.SettleBalance(ctx, edges[1].ID, 1235)
	require.NoError(t, err)

	got, err = store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.Settled)
}

func TestSettleBalanceConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, edges := dinner(t, store, 0)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(at int64) {
			defer wg.Done()
			_, err := store.SettleBalance(ctx, edges[0].ID, at)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	succeeded, alreadySettled := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperror.ErrAlreadySettled):
			alreadySettled++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, alreadySettled)
}

func TestListUnsettledBalances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Flat", Members: []string{"alice", "bob"}}))

	_, edges := dinner(t, store, 0)
	grouped := &models.Expense{
		Description:  "Rent",
		Amount:       dec("30"),
		Currency:     "USD",
		CreatedBy:    "bob",
		Participants: []string{"bob", "alice"},
		GroupID:      "g1",
	}
	require.NoError(t, store.CreateExpense(ctx, grouped, []*models.BalanceEdge{
		{PayerID: "bob", PayeeID: "alice", Amount: dec("15")},
	}))
	_, err := store.SettleBalance(ctx, edges[1].ID, 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter storage.BalanceFilter
		want   int
	}{
		{name: "all", filter: storage.BalanceFilter{}, want: 2},
		{name: "by user either side", filter: storage.BalanceFilter{UserID: "alice"}, want: 2},
		{name: "by user", filter: storage.BalanceFilter{UserID: "bob"}, want: 2},
		{name: "settled edges excluded", filter: storage.BalanceFilter{UserID: "charlie"}, want: 0},
		{name: "by group", filter: storage.BalanceFilter{GroupID: "g1"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListUnsettledBalances(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, e := range got {
				assert.False(t, e.Settled)
			}
		})
	}
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := models.NewUser("u-alice", "Alice@Example.com", "Alice Smith", "")
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, models.NewUser("u-alan", "alan@example.com", "Alan Turing", "")))
	require.NoError(t, store.CreateUser(ctx, models.NewUser("u-bob", "bob@example.com", "Bob", "")))
	require.NoError(t, store.CreateUser(ctx, models.NewUser("u-deals", "deals@example.com", "50% Off", "")))

	t.Run("duplicate ID conflicts", func(t *testing.T) {
		err := store.CreateUser(ctx, models.NewUser("u-alice", "other@example.com", "Other", ""))
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("get stores lowercased email", func(t *testing.T) {
		got, err := store.GetUser(ctx, "u-alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, "Alice Smith", got.DisplayName)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetUser(ctx, "nobody")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("get by IDs omits unknown", func(t *testing.T) {
		got, err := store.GetUsersByIDs(ctx, []string{"u-alice", "u-bob", "ghost"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Contains(t, got, "u-bob")
	})

	t.Run("search by name prefix", func(t *testing.T) {
		got, err := store.SearchUsers(ctx, "al", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "u-alan", got[0].ID)
		assert.Equal(t, "u-alice", got[1].ID)
	})

	t.Run("search by exact email", func(t *testing.T) {
		got, err := store.SearchUsers(ctx, "BOB@example.com", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "u-bob", got[0].ID)
	})

	t.Run("search treats wildcards literally", func(t *testing.T) {
		got, err := store.SearchUsers(ctx, "a_", 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = store.SearchUsers(ctx, "5%", 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = store.SearchUsers(ctx, "50%", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "u-deals", got[0].ID)
	})

	t.Run("search respects limit", func(t *testing.T) {
		got, err := store.SearchUsers(ctx, "al", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("update phone", func(t *testing.T) {
		got, err := store.UpdateUserPhone(ctx, "u-bob", "+15551234567")
		require.NoError(t, err)
		assert.Equal(t, "+15551234567", got.PhoneNumber)

		_, err = store.UpdateUserPhone(ctx, "nobody", "1")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestAllowlist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	allowed, err := store.IsEmailAllowed(ctx, "new@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.AllowEmail(ctx, "New@Example.com"))
	require.NoError(t, store.AllowEmail(ctx, "new@example.com"))

	allowed, err = store.IsEmailAllowed(ctx, " NEW@example.com ")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Name: "Roommates", Members: []string{"bob", "alice"}}
	require.NoError(t, store.CreateGroup(ctx, group))
	assert.NotEmpty(t, group.ID)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roommates", got.Name)
	assert.Equal(t, []string{"alice", "bob"}, got.Members)

	require.NoError(t, store.AddGroupMembers(ctx, group.ID, []string{"bob", "charlie"}))
	got, err = store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, got.Members)

	err = store.AddGroupMembers(ctx, "missing", []string{"alice"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	listed, err := store.ListGroupsByMember(ctx, "charlie")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, group.ID, listed[0].ID)

	listed, err = store.ListGroupsByMember(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = store.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// TestPostgres runs a smoke test against a real PostgreSQL server when
// SETTLEUP_TEST_POSTGRES_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("SETTLEUP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SETTLEUP_TEST_POSTGRES_DSN not set")
	}

	store, err := Open(DriverPostgres, dsn)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	expense, edges := dinner(t, store, 0)
	defer store.DeleteExpense(ctx, expense.ID)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("100")))

	_, err = store.SettleBalance(ctx, edges[0].ID, 1)
	require.NoError(t, err)
	_, err = store.SettleBalance(ctx, edges[0].ID, 2)
	assert.ErrorIs(t, err, apperror.ErrAlreadySettled)
}
