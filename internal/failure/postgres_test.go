package failure

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStoreWithPool(mock), mock
}

func TestInsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO search_failures").
		WithArgs(
			"아이폰 15 케이스", "아이폰 15 케이스", []byte(`["아이폰 15 케이스","아이폰 15"]`),
			2, "no matching product found", "phone", "apple", "아이폰 15", StatusPending,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := store.Insert(context.Background(), Record{
		OriginalQuery:   "아이폰 15 케이스",
		NormalizedQuery: "아이폰 15 케이스",
		Candidates:      []string{"아이폰 15 케이스", "아이폰 15"},
		AttemptedCount:  2,
		ErrorMessage:    "no matching product found",
		Category:        "phone",
		Brand:           "apple",
		Model:           "아이폰 15",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDefaultsStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO search_failures").
		WithArgs("q", "q", []byte(`null`), 0, "", "", "", "", StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := store.Insert(context.Background(), Record{OriginalQuery: "q", NormalizedQuery: "q"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommon(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT original_query, normalized_query, COUNT").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"original_query", "normalized_query", "cnt"}).
			AddRow("아이폰 17 울트라", "아이폰 17 울트라", int64(7)).
			AddRow("화이트 b182w13", "화이트 b182w13", int64(4)))

	out, err := store.Common(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(7), out[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestionsPriorities(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT original_query, normalized_query, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"original_query", "normalized_query", "cnt"}).
			AddRow("a", "a", int64(12)).
			AddRow("b", "b", int64(6)).
			AddRow("c", "c", int64(3)))

	out, err := store.Suggestions(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, PriorityHigh, out[0].Priority)
	assert.Equal(t, PriorityMedium, out[1].Priority)
	assert.Equal(t, PriorityLow, out[2].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"total", "pending", "resolved"}).
			AddRow(int64(10), int64(7), int64(3)))
	mock.ExpectQuery("SELECT category, COUNT").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"category", "count"}).
			AddRow("phone", int64(6)).
			AddRow("laptop", int64(4)))

	st, err := store.Stats(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(7), st.Pending)
	require.Len(t, st.ByCategory, 2)
	assert.Equal(t, "phone", st.ByCategory[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE search_failures").
		WithArgs(int64(42), StatusManualFixed, "Apple 맥북 에어 15 M4", "12345").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.Resolve(context.Background(), 42, StatusManualFixed, "Apple 맥북 에어 15 M4", "12345")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveMissingRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE search_failures").
		WithArgs(int64(7), StatusNotProduct, "", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Resolve(context.Background(), 7, StatusNotProduct, "", "")
	assert.Error(t, err)
}
