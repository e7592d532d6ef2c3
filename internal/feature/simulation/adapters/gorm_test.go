package adapters

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB はテスト用のインメモリSQLiteデータベースを準備します。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	// :memory: は接続ごとに別のDBになるため接続を1本に固定する
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&InstrumentModel{}, &PriceHistoryModel{})
	require.NoError(t, err, "failed to migrate tables")

	return db
}

// seedInstrument はテスト用の銘柄をデータベースに作成します。
func seedInstrument(t *testing.T, db *gorm.DB, id, symbol string, price float64, sortKey int) *InstrumentModel {
	t.Helper()

	m := &InstrumentModel{
		ID:           id,
		Symbol:       symbol,
		Name:         symbol + " Inc.",
		CurrentPrice: price,
		IsActive:     true,
		SortKey:      sortKey,
	}
	require.NoError(t, db.Create(m).Error, "failed to seed instrument")
	return m
}
