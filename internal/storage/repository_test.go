package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, username string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), username, "hash")
	require.NoError(t, err)
	return u
}

func expenseAt(userID int64, date time.Time, category core.Category, cents int64, desc string) core.Expense {
	return core.Expense{
		UserID:      userID,
		Date:        date,
		Category:    category,
		Amount:      core.Money{Cents: cents},
		Description: desc,
	}
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustUser(t, repo, "alice")
	assert.NotZero(t, created.ID)

	byName, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	byID, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsernameUnique(t *testing.T) {
	repo := newTestRepo(t)
	mustUser(t, repo, "alice")

	_, err := repo.CreateUser(context.Background(), "alice", "otherhash")
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	require.NoError(t, repo.CreateSession(ctx, "tok1", user.ID, time.Now().Add(time.Hour)))

	got, err := repo.SessionUser(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.SessionUser(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteSession(ctx, "tok1"))
	_, err = repo.SessionUser(ctx, "tok1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	require.NoError(t, repo.CreateSession(ctx, "stale", user.ID, time.Now().Add(-time.Minute)))

	_, err := repo.SessionUser(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSaveExpenseInsertAndUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	e := expenseAt(user.ID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), core.CategoryGroceries, 1250, "weekly shop")
	require.NoError(t, repo.SaveExpense(ctx, &e))
	assert.NotZero(t, e.ID)

	e.Amount.Cents = 1500
	e.Description = "weekly shop plus extras"
	require.NoError(t, repo.SaveExpense(ctx, &e))

	got, err := repo.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, got.Amount.Cents)
	assert.Equal(t, "weekly shop plus extras", got.Description)
	assert.Equal(t, core.CategoryGroceries, got.Category)
}

func TestSaveExpenseScopedToOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "alice")
	other := mustUser(t, repo, "mallory")

	e := expenseAt(owner.ID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), core.CategoryTransport, 500, "bus ticket")
	require.NoError(t, repo.SaveExpense(ctx, &e))

	// Updating with the wrong owner must touch nothing.
	hijack := e
	hijack.UserID = other.ID
	hijack.Amount.Cents = 1
	assert.ErrorIs(t, repo.SaveExpense(ctx, &hijack), ErrNotFound)

	got, err := repo.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 500, got.Amount.Cents)
	assert.Equal(t, owner.ID, got.UserID)
}

func TestInsertExpensesAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")
	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	batch := []core.Expense{
		expenseAt(user.ID, day, core.CategoryGroceries, 1000, "milk"),
		expenseAt(user.ID, day, core.CategoryUtilities, 4500, "electricity"),
		expenseAt(user.ID, day, core.CategoryOther, 300, "misc"),
	}
	require.NoError(t, repo.InsertExpenses(ctx, batch))

	count, err := repo.CountExpenses(ctx, user.ID, 2026, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, repo.InsertExpenses(ctx, nil))
}

func TestListExpensesFiltersAndPages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	for day := 1; day <= 7; day++ {
		e := expenseAt(user.ID, time.Date(2026, 4, day, 9, 0, 0, 0, time.UTC), core.CategoryGroceries, 100, "april")
		require.NoError(t, repo.SaveExpense(ctx, &e))
	}
	march := expenseAt(user.ID, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), core.CategoryGroceries, 100, "march")
	require.NoError(t, repo.SaveExpense(ctx, &march))

	page, err := repo.ListExpenses(ctx, user.ID, 2026, 4, 0, 5)
	require.NoError(t, err)
	require.Len(t, page, 5)
	// Newest first.
	assert.Equal(t, 7, page[0].Date.Day())

	rest, err := repo.ListExpenses(ctx, user.ID, 2026, 4, 5, 5)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	count, err := repo.CountExpenses(ctx, user.ID, 2026, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	empty, err := repo.ListExpenses(ctx, user.ID, 2025, 4, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAggregatesByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	batch := []core.Expense{
		expenseAt(user.ID, day, core.CategoryGroceries, 1000, "a"),
		expenseAt(user.ID, day, core.CategoryGroceries, 3000, "b"),
		expenseAt(user.ID, day, core.CategoryHousing, 50000, "rent"),
	}
	require.NoError(t, repo.InsertExpenses(ctx, batch))

	total, err := repo.SumAmounts(ctx, user.ID, 2026, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 54000, total)

	totals, err := repo.SumAmountsByCategory(ctx, user.ID, 2026, 6)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, core.CategoryGroceries, totals[0].Category)
	assert.EqualValues(t, 4000, totals[0].Cents)
	assert.Equal(t, core.CategoryHousing, totals[1].Category)
	assert.EqualValues(t, 50000, totals[1].Cents)

	averages, err := repo.AverageAmountsByCategory(ctx, user.ID, 2026, 6)
	require.NoError(t, err)
	require.Len(t, averages, 2)
	assert.InDelta(t, 2000, averages[0].Cents, 0.001)

	// Repeating the aggregation changes nothing.
	again, err := repo.SumAmounts(ctx, user.ID, 2026, 6)
	require.NoError(t, err)
	assert.Equal(t, total, again)

	zero, err := repo.SumAmounts(ctx, user.ID, 2026, 7)
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestExpenditureYears(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	for _, y := range []int{2024, 2026, 2024} {
		e := expenseAt(user.ID, time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), core.CategoryOther, 100, "x")
		require.NoError(t, repo.SaveExpense(ctx, &e))
	}

	years, err := repo.ExpenditureYears(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2026, 2024}, years)
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := mustUser(t, repo, "alice")

	e := expenseAt(user.ID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), core.CategoryHealthcare, 2000, "pharmacy")
	require.NoError(t, repo.SaveExpense(ctx, &e))

	require.NoError(t, repo.DeleteExpense(ctx, e.ID))
	_, err := repo.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
