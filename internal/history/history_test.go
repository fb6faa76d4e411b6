package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonikorin/tracker-agent/pkg/file"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	store := NewStore(path, file.NewFileService(), zerolog.Nop())
	require.NoError(t, store.Load())
	return store
}

func TestRecordLocate_LineFormatAndStatus(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 9, 1, 10, 15, 0, 0, time.UTC)

	store.RecordLocate("bob", "T1", "", false, now)
	store.RecordLocate("carol", "T1", "alice", true, now)

	snap := store.ReadAndClear()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "bob (T1) 2026-09-01 10:15:00\n", snap.Lines[0])
	assert.Equal(t, "carol (alice) 2026-09-01 10:15:00 [blocked]\n", snap.Lines[1])
	assert.Equal(t, "carol", snap.UpdateStatus.Member)
	assert.Equal(t, "alice", snap.UpdateStatus.Target)
}

func TestRecordLocate_CapEvictsOldestFirst(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	for i := 0; i < 201; i++ {
		store.RecordLocate(fmt.Sprintf("member-%d", i), "T1", "", false, now)
	}

	snap := store.ReadAndClear()
	require.Len(t, snap.Lines, 200)
	assert.Contains(t, snap.Lines[0], "member-1 ", "oldest line must be evicted first")
	assert.Contains(t, snap.Lines[199], "member-200 ")
}

func TestRecordChat_CapEvictsOldestFirst(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	for i := 0; i < 101; i++ {
		store.RecordChat([]byte(fmt.Sprintf(`{"seq":%d}`, i)), now)
	}

	snap := store.ReadAndClear()
	require.Len(t, snap.ChatMessages, 100)
	assert.Contains(t, snap.ChatMessages[0], `{"seq":1}`, "oldest chat entry must be evicted first")
	assert.Contains(t, snap.ChatMessages[99], `{"seq":100}`)
}

func TestReadAndClear_ResetsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	fileOps := file.NewFileService()

	store := NewStore(path, fileOps, zerolog.Nop())
	require.NoError(t, store.Load())
	store.RecordLocate("bob", "T1", "", false, time.Now())

	snap := store.ReadAndClear()
	assert.Len(t, snap.Lines, 1)

	// A fresh store over the same file sees the cleared state.
	reloaded := NewStore(path, fileOps, zerolog.Nop())
	require.NoError(t, reloaded.Load())
	assert.Empty(t, reloaded.ReadAndClear().Lines)
}

func TestConcurrentRecordsAreNotLost(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				store.RecordLocate(fmt.Sprintf("m-%d-%d", i, j), "T1", "", false, now)
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, store.ReadAndClear().Lines, 100)
}
