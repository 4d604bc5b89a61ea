package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/core/events/bus"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestRecordAndTotals(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		require.True(t, l.Record(Entry{CoinID: i, X: float64(i), Z: -float64(i), Collected: i, At: base.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, l.Sync(ctx))

	tot, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, tot.Entries)
	assert.EqualValues(t, 3, tot.Units)
	assert.True(t, tot.Last.Equal(base.Add(3*time.Second)))

	recent, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].CoinID)
	assert.Equal(t, 2, recent[1].CoinID)
	assert.NotEmpty(t, recent[0].TxID)
	assert.NotEqual(t, recent[0].TxID, recent[1].TxID)
	assert.InDelta(t, -3, recent[0].Z, 1e-9)
}

func TestEmptyTotals(t *testing.T) {
	l := openTemp(t)
	tot, err := l.Totals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tot.Entries)
	assert.True(t, tot.Last.IsZero())

	recent, err := l.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestHandlerConsumesCoinCollected(t *testing.T) {
	l := openTemp(t)
	b := bus.New()
	_, err := b.Subscribe(bus.CoinCollected, l.Handler())
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.Publish(bus.NewEvent(bus.CoinCollected, "test", at, bus.CoinCollectedData{ID: 7, X: 1, Z: 2, Collected: 1})))
	require.NoError(t, l.Sync(context.Background()))

	recent, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 7, recent[0].CoinID)
	assert.Equal(t, 1, recent[0].Units)
	assert.True(t, recent[0].At.Equal(at))

	err = l.Handler()(bus.NewEvent(bus.CoinCollected, "test", at, "bogus"))
	assert.ErrorIs(t, err, ErrPayload)
}

func TestRecordAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.False(t, l.Record(Entry{CoinID: 1}))
	assert.ErrorIs(t, l.Sync(context.Background()), ErrClosed)
}

func TestCloseDuringConcurrentRecords(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < 500; i++ {
				l.Record(Entry{CoinID: w*1000 + i, At: time.Unix(0, int64(i))})
				_ = l.Sync(context.Background())
			}
		}(w)
	}
	close(start)
	assert.NotPanics(t, func() { require.NoError(t, l.Close()) })
	wg.Wait()

	assert.False(t, l.Record(Entry{CoinID: 1}))
	assert.ErrorIs(t, l.Sync(context.Background()), ErrClosed)
}

func TestEntriesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, nil)
	require.NoError(t, err)
	l.Record(Entry{CoinID: 4, At: time.Now()})
	require.NoError(t, l.Close())

	l, err = Open(path, nil)
	require.NoError(t, err)
	defer l.Close()
	tot, err := l.Totals(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, tot.Entries)
}
