package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adctf/orchestrator/internal/broadcast"
	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/internal/store"
)

type fakeSubmissionStore struct {
	flags     map[string]domain.Flag
	submitted map[string]bool
}

func newFakeStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{flags: map[string]domain.Flag{}, submitted: map[string]bool{}}
}

func (f *fakeSubmissionStore) GetFlagByValue(ctx context.Context, value string) (*domain.Flag, error) {
	flag, ok := f.flags[value]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &flag, nil
}

func (f *fakeSubmissionStore) RecordSubmission(ctx context.Context, sub domain.FlagSubmission) error {
	key := sub.FlagValue + "|" + string(rune(sub.SubmitterTeamID))
	if f.submitted[key] {
		return store.ErrDuplicateSubmission
	}
	f.submitted[key] = true
	return nil
}

type fakeBroadcaster struct {
	published []broadcast.Event
}

func (f *fakeBroadcaster) Publish(ev broadcast.Event) { f.published = append(f.published, ev) }

func TestSubmitInvalidFlag(t *testing.T) {
	e := New(newFakeStore(), &fakeBroadcaster{})
	result, err := e.Submit(context.Background(), 1, "FLAG{nope}", 10, 1)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid flag", result.Message)
}

func TestSubmitOwnFlagRejected(t *testing.T) {
	s := newFakeStore()
	s.flags["FLAG{1_1_x}"] = domain.Flag{TeamID: 1, Value: "FLAG{1_1_x}"}
	e := New(s, &fakeBroadcaster{})

	result, err := e.Submit(context.Background(), 1, "FLAG{1_1_x}", 10, 1)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Cannot submit your own flag", result.Message)
}

func TestSubmitSuccessThenReplay(t *testing.T) {
	s := newFakeStore()
	s.flags["FLAG{2_1_x}"] = domain.Flag{TeamID: 2, Value: "FLAG{2_1_x}"}
	bc := &fakeBroadcaster{}
	e := New(s, bc)

	result, err := e.Submit(context.Background(), 1, "FLAG{2_1_x}", 10, 1)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.TargetTeamID)
	require.Len(t, bc.published, 1)
	assert.Equal(t, broadcast.EventFlagCaptured, bc.published[0].Type)

	result, err = e.Submit(context.Background(), 1, "FLAG{2_1_x}", 10, 1)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "This flag has already been submitted", result.Message)
}
