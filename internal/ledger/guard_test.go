package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"messenger/internal/apperr"
	"messenger/internal/logger"
	"messenger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore 在 MemoryStore 之上注入故障
type brokenStore struct {
	*MemoryStore
	err   error
	delay time.Duration
}

func (b *brokenStore) Append(ctx context.Context, id string, msg model.Message) (int64, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.MemoryStore.Append(ctx, id, msg)
}

func newGuard(next Store, timeout time.Duration) *Guard {
	return NewGuard(next, GuardOptions{Timeout: timeout, MaxFailures: 2, OpenTimeout: time.Minute}, logger.Nop())
}

func TestGuardPassesThroughBusinessErrors(t *testing.T) {
	ctx := context.Background()
	g := newGuard(NewMemoryStore(), time.Second)

	for i := 0; i < 5; i++ {
		_, err := g.Append(ctx, "missing", textMessage("m1", alice, "hi"))
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.NotErrorIs(t, err, apperr.ErrUnavailable)
	}

	// 业务错误不会触发熔断
	require.NoError(t, g.CreateConversation(ctx, newConversation("c1"), textMessage("m0", alice, "hi")))
	err := g.CreateConversation(ctx, newConversation("c1"), textMessage("m0", alice, "hi"))
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	pos, err := g.Append(ctx, "c1", textMessage("m1", bob, "yo"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)

	msgs, err := listAll(ctx, g, "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	conv, err := g.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)

	latest, err := g.Latest(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "m1", latest.ID)
}

func TestGuardMapsInfrastructureErrorsToUnavailable(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.CreateConversation(ctx, newConversation("c1"), textMessage("m0", alice, "hi")))
	broken := &brokenStore{MemoryStore: mem, err: errors.New("connection reset")}
	g := newGuard(broken, time.Second)

	_, err := g.Append(ctx, "c1", textMessage("m1", bob, "x"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	_, err = g.Append(ctx, "c1", textMessage("m1", bob, "x"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	// 连续失败后熔断，即使后端恢复也直接失败
	broken.err = nil
	_, err = g.Append(ctx, "c1", textMessage("m1", bob, "x"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	msgs, err := mem.ListMessages(ctx, "c1")
	require.NoError(t, err)
	got, err := Collect(msgs)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGuardTimeout(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.CreateConversation(ctx, newConversation("c1"), textMessage("m0", alice, "hi")))
	g := newGuard(&brokenStore{MemoryStore: mem, delay: time.Second}, 20*time.Millisecond)

	start := time.Now()
	_, err := g.Append(ctx, "c1", textMessage("m1", bob, "x"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())

	unlock := k.Lock("a")
	assert.Equal(t, 1, k.size())
	// 不同的键互不阻塞
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockB()
	unlock()
	assert.Equal(t, 0, k.size())
}
