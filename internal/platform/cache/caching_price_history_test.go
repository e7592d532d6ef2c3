package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_simulator/internal/feature/simulation/domain/entity"
)

// mockPriceHistoryStore はテスト用のPriceHistoryStoreモック実装です。
type mockPriceHistoryStore struct {
	recordFn func(ctx context.Context, id string, price float64, at time.Time) error
	updateFn func(ctx context.Context, id string, price float64) error
	findFn   func(ctx context.Context, id string, limit int) ([]entity.PricePoint, error)
	deleteFn func(ctx context.Context, cutoff time.Time) (int64, error)

	findCalls int
}

func (m *mockPriceHistoryStore) RecordPriceHistory(ctx context.Context, id string, price float64, at time.Time) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, id, price, at)
	}
	return nil
}

func (m *mockPriceHistoryStore) UpdateCurrentPrice(ctx context.Context, id string, price float64) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, price)
	}
	return nil
}

func (m *mockPriceHistoryStore) FindPriceHistory(ctx context.Context, id string, limit int) ([]entity.PricePoint, error) {
	m.findCalls++
	if m.findFn != nil {
		return m.findFn(ctx, id, limit)
	}
	return nil, nil
}

func (m *mockPriceHistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

var samplePoints = []entity.PricePoint{
	{Price: 100.25, RecordedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	{Price: 100.5, RecordedAt: time.Date(2024, 1, 1, 9, 0, 5, 0, time.UTC)},
}

// TestNewCachingPriceHistory_Defaults はデフォルト値（TTLとnamespace）が正しく設定されることを検証します。
func TestNewCachingPriceHistory_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		ttl               time.Duration
		namespace         string
		expectedTTL       time.Duration
		expectedNamespace string
	}{
		{"default values when zero/empty", 0, "", DefaultTTL, DefaultNamespace},
		{"negative ttl uses default", -time.Minute, "", DefaultTTL, DefaultNamespace},
		{"custom values preserved", 10 * time.Minute, "custom", 10 * time.Minute, "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := NewCachingPriceHistory(nil, tt.ttl, &mockPriceHistoryStore{}, tt.namespace)

			assert.Equal(t, tt.expectedTTL, repo.ttl)
			assert.Equal(t, tt.expectedNamespace, repo.namespace)
		})
	}
}

// TestCachingPriceHistory_Find_NilRedis はRedisがnilの場合に内部ストアを直接呼び出すことを検証します。
func TestCachingPriceHistory_Find_NilRedis(t *testing.T) {
	t.Parallel()

	inner := &mockPriceHistoryStore{
		findFn: func(context.Context, string, int) ([]entity.PricePoint, error) { return samplePoints, nil },
	}
	repo := NewCachingPriceHistory(nil, time.Minute, inner, "")

	got, err := repo.FindPriceHistory(context.Background(), "A1", 100)

	require.NoError(t, err)
	assert.Equal(t, samplePoints, got)
	assert.Equal(t, 1, inner.findCalls)
}

// TestCachingPriceHistory_Find_CacheHit はキャッシュヒット時に内部ストアを呼ばないことを検証します。
func TestCachingPriceHistory_Find_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cachedJSON, _ := json.Marshal(samplePoints)
	mock.ExpectGet("price_history:A1:100").SetVal(string(cachedJSON))

	inner := &mockPriceHistoryStore{}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")

	got, err := repo.FindPriceHistory(context.Background(), "A1", 100)

	require.NoError(t, err)
	assert.Equal(t, samplePoints, got)
	assert.Zero(t, inner.findCalls, "inner store should not be called on cache hit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Find_CacheMiss はキャッシュミス時にDBから取得してキャッシュに保存することを検証します。
func TestCachingPriceHistory_Find_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedJSON, _ := json.Marshal(samplePoints)
	mock.ExpectGet("price_history:A1:100").RedisNil()
	mock.ExpectSet("price_history:A1:100", expectedJSON, time.Minute).SetVal("OK")

	inner := &mockPriceHistoryStore{
		findFn: func(context.Context, string, int) ([]entity.PricePoint, error) { return samplePoints, nil },
	}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")

	got, err := repo.FindPriceHistory(context.Background(), "A1", 100)

	require.NoError(t, err)
	assert.Equal(t, samplePoints, got)
	assert.Equal(t, 1, inner.findCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Find_InnerError は内部ストアのエラーが伝播されることを検証します。
func TestCachingPriceHistory_Find_InnerError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("database error")
	mock.ExpectGet("price_history:A1:100").RedisNil()

	inner := &mockPriceHistoryStore{
		findFn: func(context.Context, string, int) ([]entity.PricePoint, error) { return nil, expectedErr },
	}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")

	_, err := repo.FindPriceHistory(context.Background(), "A1", 100)

	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Find_CorruptedCache は破損したキャッシュを削除してDBにフォールバックすることを検証します。
func TestCachingPriceHistory_Find_CorruptedCache(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedJSON, _ := json.Marshal(samplePoints)
	mock.ExpectGet("price_history:A1:100").SetVal("invalid json")
	mock.ExpectDel("price_history:A1:100").SetVal(1)
	mock.ExpectSet("price_history:A1:100", expectedJSON, time.Minute).SetVal("OK")

	inner := &mockPriceHistoryStore{
		findFn: func(context.Context, string, int) ([]entity.PricePoint, error) { return samplePoints, nil },
	}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")

	got, err := repo.FindPriceHistory(context.Background(), "A1", 100)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Record_Invalidation は記録後にその銘柄のキャッシュが無効化されることを検証します。
func TestCachingPriceHistory_Record_Invalidation(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "price_history:A1:*", 200).SetVal([]string{"price_history:A1:100", "price_history:A1:20"}, 0)
	mock.ExpectDel("price_history:A1:100", "price_history:A1:20").SetVal(2)

	var gotID string
	var gotPrice float64
	var gotAt time.Time
	inner := &mockPriceHistoryStore{
		recordFn: func(_ context.Context, id string, price float64, at time.Time) error {
			gotID, gotPrice, gotAt = id, price, at
			return nil
		},
	}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	err := repo.RecordPriceHistory(context.Background(), "A1", 101.5, at)

	require.NoError(t, err)
	assert.Equal(t, "A1", gotID)
	assert.Equal(t, 101.5, gotPrice)
	assert.Equal(t, at, gotAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Record_ScanErrorIsIgnored はキャッシュ無効化の失敗で書き込みが失敗しないことを検証します。
func TestCachingPriceHistory_Record_ScanErrorIsIgnored(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "price_history:A1:*", 200).SetErr(errors.New("redis down"))

	repo := NewCachingPriceHistory(rdb, time.Minute, &mockPriceHistoryStore{}, "")

	assert.NoError(t, repo.RecordPriceHistory(context.Background(), "A1", 1, time.Time{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_Record_InnerError は内部ストアのエラー時にキャッシュへ触れないことを検証します。
func TestCachingPriceHistory_Record_InnerError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("insert error")
	inner := &mockPriceHistoryStore{
		recordFn: func(context.Context, string, float64, time.Time) error { return expectedErr },
	}
	repo := NewCachingPriceHistory(rdb, time.Minute, inner, "")

	err := repo.RecordPriceHistory(context.Background(), "A1", 1, time.Time{})

	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCachingPriceHistory_UpdateCurrentPrice は現在価格の更新がそのまま委譲されることを検証します。
func TestCachingPriceHistory_UpdateCurrentPrice(t *testing.T) {
	t.Parallel()

	expectedErr := errors.New("update error")
	inner := &mockPriceHistoryStore{
		updateFn: func(context.Context, string, float64) error { return expectedErr },
	}
	repo := NewCachingPriceHistory(nil, time.Minute, inner, "")

	assert.ErrorIs(t, repo.UpdateCurrentPrice(context.Background(), "A1", 1), expectedErr)
}

// TestCachingPriceHistory_DeleteOlderThan は削除があった場合のみ名前空間全体を無効化することを検証します。
func TestCachingPriceHistory_DeleteOlderThan(t *testing.T) {
	t.Parallel()

	t.Run("rows deleted", func(t *testing.T) {
		t.Parallel()
		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()

		mock.ExpectScan(0, "price_history:*", 200).SetVal([]string{"price_history:A1:100"}, 0)
		mock.ExpectDel("price_history:A1:100").SetVal(1)

		inner := &mockPriceHistoryStore{
			deleteFn: func(context.Context, time.Time) (int64, error) { return 3, nil },
		}
		n, err := NewCachingPriceHistory(rdb, time.Minute, inner, "").DeleteOlderThan(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing deleted", func(t *testing.T) {
		t.Parallel()
		rdb, mock := redismock.NewClientMock()
		defer func() { _ = rdb.Close() }()

		n, err := NewCachingPriceHistory(rdb, time.Minute, &mockPriceHistoryStore{}, "").DeleteOlderThan(context.Background(), time.Now())

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inner error", func(t *testing.T) {
		t.Parallel()
		expectedErr := errors.New("delete error")
		inner := &mockPriceHistoryStore{
			deleteFn: func(context.Context, time.Time) (int64, error) { return 0, expectedErr },
		}
		_, err := NewCachingPriceHistory(nil, time.Minute, inner, "").DeleteOlderThan(context.Background(), time.Now())

		assert.ErrorIs(t, err, expectedErr)
	})
}

// TestSafe はsafe関数がRedisキーで問題となる文字を正しくエスケープすることを検証します。
func TestSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"A1", "A1"},
		{"BRK A", "BRK_A"},
		{"key:value", "key_value"},
		{"a*b", "a_b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, safe(tt.input))
		})
	}
}
