package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genlock/internal/ir"
)

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(42), c.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines, calls = 50, 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		require.False(t, seen[seq], "seq %d issued twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), c.Current())
}

// Only committed operations advance the clock: rejections, journal
// failures and no-op re-activations leave it where it was.
func TestClock_AdvancesOnlyOnCommit(t *testing.T) {
	f := newFixture(t)
	paid := f.addPaid(t, "Gold", 10, ir.Genesis)
	f.mint(t, 1, alice)
	start := f.e.Seq()

	_, err := f.e.UnlockGeneration(f.ctx, alice, 1, paid, ir.NewAmount(9))
	require.Error(t, err)
	assert.Equal(t, start, f.e.Seq())

	require.NoError(t, f.e.ActivateGeneration(f.ctx, alice, 1, ir.Genesis))
	assert.Equal(t, start, f.e.Seq())

	f.journal.fail = errors.New("disk full")
	_, err = f.e.UnlockGeneration(f.ctx, alice, 1, paid, ir.NewAmount(10))
	require.Error(t, err)
	assert.Equal(t, start, f.e.Seq())

	f.journal.fail = nil
	_, err = f.e.UnlockGeneration(f.ctx, alice, 1, paid, ir.NewAmount(10))
	require.NoError(t, err)
	ev, ok := f.e.LastEvent()
	require.True(t, ok)
	assert.Equal(t, start+1, ev.Seq)
}

func TestRestore_ContinuesFromStoredSeq(t *testing.T) {
	f := newFixture(t)
	f.addPaid(t, "Gold", 10, ir.Genesis)
	seq := f.e.Seq()

	restored, err := Restore(f.e.Snapshot(), seq)
	require.NoError(t, err)
	assert.Equal(t, seq, restored.Seq())

	require.NoError(t, restored.Mint(f.ctx, 3))
	ev, ok := restored.LastEvent()
	require.True(t, ok)
	assert.Equal(t, seq+1, ev.Seq)
}

func TestRestore_KeepsClockThatIsAhead(t *testing.T) {
	f := newFixture(t)

	restored, err := Restore(f.e.Snapshot(), f.e.Seq(), WithClock(NewClockAt(20)))
	require.NoError(t, err)

	require.NoError(t, restored.Mint(f.ctx, 3))
	ev, _ := restored.LastEvent()
	assert.Equal(t, int64(21), ev.Seq)
}
