package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory/memory"
)

func Test_Outbox_DeliversReconciliation(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	o := NewOutbox(NewReconciler(dir, src))

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	require.NoError(t, o.Enqueue(ctx, "u1"))

	require.Eventually(t, func() bool {
		keys, err := dir.ListMemberships(context.Background(), "u1", core.GroupKindRole)
		return err == nil && len(keys) == 1
	}, time.Second*5, time.Millisecond*10)

	cancel()
	o.WaitForCompletion()
}

func Test_Outbox_RetriesTransientFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := &failingDirectory{Directory: memory.NewMemoryDirectory(), failSetMembership: true}
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	o := NewOutbox(
		NewReconciler(dir, src),
		WithInitialInterval(time.Millisecond*10),
		WithMaxElapsedTime(time.Second*5),
	)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	require.NoError(t, o.Enqueue(ctx, "u1"))

	require.Eventually(t, func() bool {
		keys, err := dir.ListMemberships(context.Background(), "u1", core.GroupKindRole)
		return err == nil && len(keys) == 1
	}, time.Second*5, time.Millisecond*10)

	cancel()
	o.WaitForCompletion()
}

// panickingSource panics on the principal read for one id and serves every
// other id normally.
type panickingSource struct {
	*fakeSource

	panicID string

	mu     sync.Mutex
	panics int
}

func (s *panickingSource) Principal(ctx context.Context, id string) (*core.Principal, error) {
	if id == s.panicID {
		s.mu.Lock()
		s.panics++
		s.mu.Unlock()

		panic("corrupt principal record")
	}

	return s.fakeSource.Principal(ctx, id)
}

func (s *panickingSource) panicCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.panics
}

func Test_Outbox_RecoversPanicAndKeepsConsuming(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := memory.NewMemoryDirectory()
	src := &panickingSource{fakeSource: newFakeSource(), panicID: "bad"}
	src.put(&core.Principal{ID: "bad", Role: core.RoleUser, Active: true})
	src.put(&core.Principal{ID: "good", Role: core.RoleUser, Active: true})

	o := NewOutbox(
		NewReconciler(dir, src),
		WithInitialInterval(time.Millisecond*10),
		WithMaxElapsedTime(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	require.NoError(t, o.Enqueue(ctx, "bad"))
	require.NoError(t, o.Enqueue(ctx, "good"))

	// The consumer survives the panic and delivers the next message.
	require.Eventually(t, func() bool {
		keys, err := dir.ListMemberships(context.Background(), "good", core.GroupKindRole)
		return err == nil && len(keys) == 1
	}, time.Second*5, time.Millisecond*10)

	// A panic is a permanent failure: no redelivery.
	require.Equal(t, 1, src.panicCount())

	keys, err := dir.ListMemberships(context.Background(), "bad", core.GroupKindRole)
	require.NoError(t, err)
	require.Empty(t, keys)

	cancel()
	o.WaitForCompletion()
}
