package ops

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/daylog/internal/config"
	"github.com/hpungsan/daylog/internal/db"
	"github.com/hpungsan/daylog/internal/event"
)

// fixedNow is 2024-03-11 18:00 UTC.
var fixedNow = time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC)

func setupEnv(t *testing.T) *Env {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	env := NewEnv(database, cfg, tmpDir, nil)
	env.Now = func() time.Time { return fixedNow }
	return env
}

func day(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2024-03-11 "+clock)
	if err != nil {
		panic(err)
	}
	return t
}

func recordFocus(t *testing.T, env *Env, ts time.Time, app, window string, secs float64) string {
	t.Helper()
	out, err := Record(context.Background(), env, RecordInput{
		Type:      event.FocusChange,
		Timestamp: ts,
		Source:    "desktop",
		Payload:   event.Payload{App: app, Window: window, DurationSeconds: secs},
	})
	require.NoError(t, err)
	return out.ID
}

func TestDayLocks_SerializesSameDay(t *testing.T) {
	locks := newDayLocks()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("2024-03-11")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxActive)
	require.Empty(t, locks.locks, "lock entries must be released")
}

func TestDayLocks_DifferentDaysIndependent(t *testing.T) {
	locks := newDayLocks()
	unlockA := locks.lock("2024-03-11")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.lock("2024-03-12")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different day blocked")
	}
}

func TestEnv_Today(t *testing.T) {
	env := setupEnv(t)
	today, err := env.Today()
	require.NoError(t, err)
	require.Equal(t, "2024-03-11", today)

	env.Config.CutoffHour = 20
	today, err = env.Today()
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", today)
}
