package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "market.observations",
		Columns:      []string{"series_id", "obs_date", "value"},
		ConflictKeys: []string{"series_id", "obs_date"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsertTx_NoColumns(t *testing.T) {
	_, err := UpsertTx(context.Background(), nil, UpsertConfig{
		Table:        "market.observations",
		ConflictKeys: []string{"series_id"},
	}, [][]any{{"UNRATE", "2024-01-01", 3.7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsertTx_NoConflictKeys(t *testing.T) {
	_, err := UpsertTx(context.Background(), nil, UpsertConfig{
		Table:   "market.observations",
		Columns: []string{"series_id", "obs_date", "value"},
	}, [][]any{{"UNRATE", "2024-01-01", 3.7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_FullFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"series_id", "obs_date", "value"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_market_observations"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_market_observations"}, cols).
		WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM "_tmp_upsert_market_observations"`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "market"."observations"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "market.observations",
		Columns:      cols,
		ConflictKeys: []string{"series_id", "obs_date"},
	}, [][]any{
		{"UNRATE", "2024-01-01", 3.7},
		{"UNRATE", "2024-02-01", 3.9},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_RollbackOnInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"series_id", "obs_date", "value"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_market_observations"}, cols).
		WillReturnResult(1)
	mock.ExpectExec(`DELETE FROM`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "market.observations",
		Columns:      cols,
		ConflictKeys: []string{"series_id", "obs_date"},
	}, [][]any{{"UNRATE", "2024-01-01", 3.7}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"market.observations", `"market"."observations"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"series_id", "obs_date", "value"})
	assert.Equal(t, `"series_id", "obs_date", "value"`, result)
}
