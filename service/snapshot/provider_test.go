package snapshot

import (
	"context"
	"testing"

	"datasentinel-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLProviderFetch(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	require.NoError(t, tdb.DB.Exec(
		`CREATE TABLE orders (order_id INTEGER, amount REAL, note TEXT)`).Error)
	require.NoError(t, tdb.DB.Exec(
		`INSERT INTO orders VALUES (1, 10.5, 'a'), (2, NULL, 'b'), (3, 30.0, NULL), (4, 12.5, 'a')`).Error)

	provider := NewSQLProvider(tdb.DB, 100)

	snapshot, err := provider.Fetch(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", snapshot.TableName)
	assert.Equal(t, 4, snapshot.RowCount)
	require.Len(t, snapshot.Columns, 3)

	byName := map[string]int{}
	for i, col := range snapshot.Columns {
		byName[col.Name] = i
	}

	orderID := snapshot.Columns[byName["order_id"]]
	assert.Equal(t, 0, orderID.NullCount)
	assert.Equal(t, 4, orderID.DistinctCount)
	assert.True(t, orderID.IsNumeric)
	assert.False(t, orderID.IsObject)
	assert.Len(t, orderID.Values, 4)

	amount := snapshot.Columns[byName["amount"]]
	assert.Equal(t, 1, amount.NullCount)
	assert.Equal(t, 3, amount.DistinctCount)
	assert.True(t, amount.IsNumeric)
	assert.Len(t, amount.Values, 3)

	note := snapshot.Columns[byName["note"]]
	assert.Equal(t, 1, note.NullCount)
	assert.Equal(t, 2, note.DistinctCount)
	assert.True(t, note.IsObject)
	assert.Equal(t, []string{"str"}, note.TypeSamples)
}

func TestSQLProviderFetchEmptyTable(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	require.NoError(t, tdb.DB.Exec(`CREATE TABLE empty_table (a INTEGER)`).Error)

	provider := NewSQLProvider(tdb.DB, 100)

	snapshot, err := provider.Fetch(context.Background(), "empty_table")
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.RowCount)
}

func TestSQLProviderRejectsInvalidTableName(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	provider := NewSQLProvider(tdb.DB, 100)

	_, err := provider.Fetch(context.Background(), "orders; DROP TABLE users")
	assert.Error(t, err)

	_, err = provider.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestSQLProviderFetchMissingTable(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	provider := NewSQLProvider(tdb.DB, 100)

	_, err := provider.Fetch(context.Background(), "no_such_table")
	assert.Error(t, err)
}

func TestSQLProviderDetectsMixedTypes(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	// sqlite动态类型允许同列混存文本与整数
	require.NoError(t, tdb.DB.Exec(`CREATE TABLE mixed (v)`).Error)
	require.NoError(t, tdb.DB.Exec(`INSERT INTO mixed VALUES ('x'), (1), ('y')`).Error)

	provider := NewSQLProvider(tdb.DB, 100)

	snapshot, err := provider.Fetch(context.Background(), "mixed")
	require.NoError(t, err)

	col := snapshot.Columns[0]
	assert.True(t, col.IsObject)
	assert.Len(t, col.TypeSamples, 2)
	assert.False(t, col.IsNumeric)
}
