package nstree

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfcarvalho/distfs/internal/apierr"
)

func TestLockMissingPathIsNotFound(t *testing.T) {
	tr := New()
	err := tr.Lock(mustParse(t, "/missing"), false)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestUnlockMissingPathIsInvalidArgument(t *testing.T) {
	tr := New()
	_, err := tr.Unlock(mustParse(t, "/missing"), false)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.InvalidArgument))
}

func TestSharedLocksOnSameFileDoNotBlockEachOther(t *testing.T) {
	defer leaktest.Check(t)()
	tr := New()
	p := mustParse(t, "/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	require.NoError(t, tr.Lock(p, false))
	require.NoError(t, tr.Lock(p, false))

	_, err := tr.Unlock(p, false)
	require.NoError(t, err)
	_, err = tr.Unlock(p, false)
	require.NoError(t, err)
}

func TestExclusiveLockExcludesSharedLock(t *testing.T) {
	defer leaktest.Check(t)()
	tr := New()
	p := mustParse(t, "/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	require.NoError(t, tr.Lock(p, true))

	acquired := make(chan struct{})
	go func() {
		require.NoError(t, tr.Lock(p, false))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock granted while an exclusive lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := tr.Unlock(p, true)
	require.NoError(t, err)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("shared lock never granted after exclusive release")
	}
	_, err = tr.Unlock(p, false)
	require.NoError(t, err)
}

func TestWriterPreferenceOverNewReaders(t *testing.T) {
	defer leaktest.Check(t)()
	tr := New()
	p := mustParse(t, "/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	// Hold a shared lock so the writer below must queue.
	require.NoError(t, tr.Lock(p, false))

	writerWaiting := make(chan struct{})
	writerAcquired := make(chan struct{})
	go func() {
		close(writerWaiting)
		require.NoError(t, tr.Lock(p, true))
		close(writerAcquired)
	}()
	<-writerWaiting
	time.Sleep(20 * time.Millisecond) // give the writer a chance to enqueue

	readerAcquired := make(chan struct{})
	go func() {
		require.NoError(t, tr.Lock(p, false))
		close(readerAcquired)
	}()

	select {
	case <-readerAcquired:
		t.Fatal("a new reader jumped ahead of a queued writer")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := tr.Unlock(p, false) // release the original shared holder
	require.NoError(t, err)

	select {
	case <-writerAcquired:
	case <-time.After(time.Second):
		t.Fatal("queued writer never granted")
	}
	_, err = tr.Unlock(p, true)
	require.NoError(t, err)

	select {
	case <-readerAcquired:
	case <-time.After(time.Second):
		t.Fatal("reader never granted after writer released")
	}
	_, err = tr.Unlock(p, false)
	require.NoError(t, err)
}

func TestExclusiveUnlockOfLeafFileIsCollapseCandidate(t *testing.T) {
	tr := New()
	p := mustParse(t, "/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	require.NoError(t, tr.Lock(p, true))
	cand, err := tr.Unlock(p, true)
	require.NoError(t, err)
	assert.Equal(t, CollapseCandidate, cand.Kind)
	assert.Equal(t, p, cand.Path)
}

func TestExclusiveUnlockOfDirectoryIsNotACollapseCandidate(t *testing.T) {
	tr := New()
	d := mustParse(t, "/d")
	require.True(t, tr.AddWithIntermediates(d, true))

	require.NoError(t, tr.Lock(d, true))
	cand, err := tr.Unlock(d, true)
	require.NoError(t, err)
	assert.Equal(t, NoCandidate, cand.Kind)
}

func TestSharedUnlockTriggersReplicationAtThreshold(t *testing.T) {
	tr := New()
	p := mustParse(t, "/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	var last Candidate
	for i := 0; i < ReplicationThreshold; i++ {
		require.NoError(t, tr.Lock(p, false))
		cand, err := tr.Unlock(p, false)
		require.NoError(t, err)
		last = cand
		if i < ReplicationThreshold-1 {
			assert.Equal(t, NoCandidate, cand.Kind, "iteration %d", i)
		}
	}
	assert.Equal(t, ReplicationCandidate, last.Kind)
	assert.Equal(t, p, last.Path)

	// The counter resets: one more release should not immediately retrigger.
	require.NoError(t, tr.Lock(p, false))
	cand, err := tr.Unlock(p, false)
	require.NoError(t, err)
	assert.Equal(t, NoCandidate, cand.Kind)
}

func TestAncestorLocksAreAlwaysSharedRegardlessOfTargetMode(t *testing.T) {
	defer leaktest.Check(t)()
	tr := New()
	p := mustParse(t, "/d/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	require.NoError(t, tr.Lock(p, true))

	// The ancestor directory only took a shared lock, so a concurrent
	// shared lock on it must succeed immediately.
	dirAcquired := make(chan struct{})
	go func() {
		require.NoError(t, tr.Lock(mustParse(t, "/d"), false))
		close(dirAcquired)
	}()

	select {
	case <-dirAcquired:
	case <-time.After(time.Second):
		t.Fatal("shared lock on ancestor directory should not be blocked by an exclusive lock on a descendant file")
	}

	_, err := tr.Unlock(mustParse(t, "/d"), false)
	require.NoError(t, err)
	_, err = tr.Unlock(p, true)
	require.NoError(t, err)
}

func TestEachChainNodeIsDecrementedExactlyOncePerRelease(t *testing.T) {
	// Regression test for the double-decrement scenario: releasing a
	// path-chain lock must reduce every ancestor's reader count by
	// exactly one, never two, so a balanced lock/unlock sequence always
	// leaves every node's readers at zero.
	tr := New()
	p := mustParse(t, "/d/f")
	require.True(t, tr.AddWithIntermediates(p, false))

	require.NoError(t, tr.Lock(p, false))
	_, err := tr.Unlock(p, false)
	require.NoError(t, err)

	tr.mu.Lock()
	dirNode, err := tr.lookupLocked(mustParse(t, "/d"))
	require.NoError(t, err)
	assert.Equal(t, 0, dirNode.readers)

	fileNode, err := tr.lookupLocked(p)
	require.NoError(t, err)
	assert.Equal(t, 0, fileNode.readers)
	tr.mu.Unlock()
}
