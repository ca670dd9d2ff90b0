package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
)

type stubStep struct {
	name  string
	err   error
	calls int
}

func (s *stubStep) Name() string { return s.name }

func (s *stubStep) Execute(context.Context) error {
	s.calls++
	return s.err
}

func TestOrchestratorStopsAtFirstFailure(t *testing.T) {
	repo := sagalog.NewMemoryRepository()
	first := &stubStep{name: "first"}
	second := &stubStep{name: "second", err: errors.New("boom")}
	third := &stubStep{name: "third"}

	failed, err := NewOrchestrator(repo, nil, first, second, third).Start(context.Background(), "saga-1", "ORD-1", "{}")

	require.Error(t, err)
	assert.Equal(t, "second", failed)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, third.calls)

	entries := repo.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, sagalog.StatusStarted, entries[0].Status)
	assert.Equal(t, "{}", entries[0].Payload)
	assert.Equal(t, sagalog.StatusStepDone, entries[1].Status)
	assert.Equal(t, "first", entries[1].CurrentStep)
}

func TestOrchestratorWithoutRepository(t *testing.T) {
	step := &stubStep{name: "only"}

	failed, err := NewOrchestrator(nil, nil, step).Start(context.Background(), "saga-1", "ORD-1", "")
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 1, step.calls)
}
