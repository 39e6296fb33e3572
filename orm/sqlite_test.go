package orm_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mickamy/ormfind/orm"
)

var sqliteSchema = []string{
	`CREATE TABLE "Order" (id INTEGER PRIMARY KEY, customerId INTEGER NOT NULL)`,
	`CREATE TABLE "Item" (id INTEGER PRIMARY KEY, orderId INTEGER NOT NULL, sku TEXT NOT NULL)`,
	`CREATE TABLE "User" (ID INTEGER PRIMARY KEY, Name TEXT NOT NULL)`,
	`CREATE TABLE "Profile" (ID INTEGER PRIMARY KEY, UserID INTEGER NOT NULL, Bio TEXT NOT NULL)`,
	`INSERT INTO "Order" (id, customerId) VALUES (7, 3), (8, 3), (9, 4)`,
	`INSERT INTO "Item" (id, orderId, sku) VALUES (70, 7, 'A-1'), (71, 7, 'B-2'), (90, 9, 'C-3')`,
	`INSERT INTO "User" (ID, Name) VALUES (1, 'Alice'), (2, 'Bob')`,
	`INSERT INTO "Profile" (ID, UserID, Bio) VALUES (10, 1, 'hello')`,
}

func openSQLite(t *testing.T) *orm.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range sqliteSchema {
		_, err := sqlDB.ExecContext(t.Context(), stmt)
		require.NoError(t, err, stmt)
	}
	return orm.New(sqlDB, orm.SQLite)
}

func TestSQLiteLoadOrdersWithItems(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)

	orders, err := orm.Load[Order](t.Context(), newFinder(), db, orm.Eq("customerId", 3))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, 7, orders[0].Id)
	assert.Equal(t, []Item{
		{Id: 70, OrderID: 7, Sku: "A-1"},
		{Id: 71, OrderID: 7, Sku: "B-2"},
	}, orders[0].Items)
	assert.Equal(t, 8, orders[1].Id)
	assert.Empty(t, orders[1].Items)
}

func TestSQLiteHasOne(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	f := newFinder()

	alice, err := orm.First[User](t.Context(), f, db, orm.Eq("ID", 1))
	require.NoError(t, err)
	assert.Equal(t, &Profile{ID: 10, UserID: 1, Bio: "hello"}, alice.Profile)

	_, err = orm.First[User](t.Context(), f, db, orm.Eq("ID", 2))
	require.ErrorIs(t, err, orm.ErrNotFound)
	assert.Equal(t, orm.KindRelation, orm.KindOf(err))
}

func TestSQLiteFindByQuery(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)
	f := newFinder()

	skus, err := orm.Pluck[string](t.Context(), f, db,
		`SELECT sku, id FROM "Item" WHERE orderId=? ORDER BY id`, orm.Eq("orderId", 7))
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1", "B-2"}, skus)

	counts, err := f.FindByQuery(t.Context(), db, `SELECT COUNT(*) FROM "Order"`)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, counts)
}

func TestSQLiteQueryError(t *testing.T) {
	t.Parallel()

	db := openSQLite(t)

	_, err := orm.Load[Customer](t.Context(), newFinder(), db)
	require.Error(t, err)
	assert.Equal(t, orm.KindQuery, orm.KindOf(err))
}
