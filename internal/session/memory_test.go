package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DCbrown/interview-ai-app/internal/conversation"
)

func newRecord(id string) *Record {
	return &Record{ID: id, InterviewType: "behavioral", JobURL: "https://jobs.example/1", SystemPrompt: "persona"}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreTypeMemory)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("sqlite")
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	rec := newRecord("a")
	require.NoError(t, s.Create(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)
	assert.False(t, rec.CreatedAt.IsZero())

	assert.ErrorIs(t, s.Create(ctx, newRecord("a")), ErrAlreadyExists)

	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "behavioral", got.InterviewType)

	// returned records are copies
	got.History = append(got.History, Entry{Role: conversation.RoleUser, Content: "x"})
	again, _ := s.Get(ctx, "a")
	assert.Empty(t, again.History)
}

func TestMemoryStore_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	require.NoError(t, s.Create(ctx, newRecord("a")))

	first, _ := s.Get(ctx, "a")
	second, _ := s.Get(ctx, "a")

	first.History = append(first.History, Entry{Role: conversation.RoleUser, Content: "one"})
	require.NoError(t, s.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.History = append(second.History, Entry{Role: conversation.RoleUser, Content: "two"})
	assert.ErrorIs(t, s.Update(ctx, second), ErrVersionConflict)

	assert.ErrorIs(t, s.Update(ctx, newRecord("missing")), ErrNotFound)
}

func TestMemoryStore_DeleteClose(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	require.NoError(t, s.Create(ctx, newRecord("a")))
	require.NoError(t, s.Delete(ctx, "a"))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Close())
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAppendEntry_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)
	require.NoError(t, s.Create(ctx, newRecord("a")))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := AppendEntry(ctx, s, "a", Entry{Role: conversation.RoleUser, Content: "answer"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	rec, _ := s.Get(ctx, "a")
	assert.Len(t, rec.History, ok)
	assert.Equal(t, int64(1+ok), rec.Version)
	assert.GreaterOrEqual(t, ok, 1)

	_, err := AppendEntry(ctx, s, "missing", Entry{Role: conversation.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_PromptHistory(t *testing.T) {
	rec := newRecord("a")
	rec.History = []Entry{
		{Role: conversation.RoleAssistant, Content: "Hi, I'm your interviewer."},
		{Role: conversation.RoleUser, Content: "Hello"},
	}
	h := rec.PromptHistory()
	require.Len(t, h, 3)
	assert.Equal(t, conversation.RoleSystem, h[0].Role)
	assert.Equal(t, "Hello", h[2].Content)
}
