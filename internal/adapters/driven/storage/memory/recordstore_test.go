package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

func TestRecordStore_GetNotFound(t *testing.T) {
	store := NewRecordStore()

	_, err := store.Get(context.Background(), "analyses/a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_BatchSetMerge(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.BatchSet(ctx, []driven.RecordWrite{
		{Path: "jobs/j1", Data: []byte(`{"status":"running","progress":10}`)},
		{Path: "jobs/j1", Data: []byte(`{"progress":50}`), Merge: true},
	}))

	data, err := store.Get(ctx, "jobs/j1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"running","progress":50}`, string(data))
	assert.Equal(t, 1, store.Len())
}

func TestRecordStore_FailedBatchLeavesNoPartialWrite(t *testing.T) {
	errDisk := errors.New("disk full")

	tests := []struct {
		name   string
		setup  func(*RecordStore)
		writes []driven.RecordWrite
		want   error
	}{
		{
			name:  "injected failure",
			setup: func(s *RecordStore) { s.FailWritesTo("analysis_details/a1", errDisk) },
			writes: []driven.RecordWrite{
				{Path: "analyses/a1", Data: []byte(`{}`)},
				{Path: "analysis_details/a1", Data: []byte(`{}`)},
			},
			want: errDisk,
		},
		{
			name: "invalid json",
			writes: []driven.RecordWrite{
				{Path: "analyses/a1", Data: []byte(`{}`)},
				{Path: "analysis_details/a1", Data: []byte(`not json`)},
			},
			want: domain.ErrInvalidInput,
		},
		{
			name: "bad path",
			writes: []driven.RecordWrite{
				{Path: "analyses/a1", Data: []byte(`{}`)},
				{Path: "analysis_details", Data: []byte(`{}`)},
			},
			want: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewRecordStore()
			if tt.setup != nil {
				tt.setup(store)
			}

			err := store.BatchSet(context.Background(), tt.writes)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, store.Len())
		})
	}
}

func TestRecordStore_FailWritesToClear(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	w := []driven.RecordWrite{{Path: "analyses/a1", Data: []byte(`{}`)}}

	store.FailWritesTo("analyses/a1", errors.New("boom"))
	require.Error(t, store.BatchSet(ctx, w))

	store.FailWritesTo("analyses/a1", nil)
	require.NoError(t, store.BatchSet(ctx, w))
}

func TestRecordStore_Query(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.BatchSet(ctx, []driven.RecordWrite{
		{Path: "analyses/a1", Data: []byte(`{"user_id":"alice","created_at":"2026-01-01T00:00:00Z"}`)},
		{Path: "analyses/a2", Data: []byte(`{"user_id":"bob","created_at":"2026-01-02T00:00:00Z"}`)},
		{Path: "analyses/a3", Data: []byte(`{"user_id":"alice","created_at":"2026-01-03T00:00:00Z"}`)},
		{Path: "jobs/a1", Data: []byte(`{"user_id":"alice"}`)},
	}))

	tests := []struct {
		name  string
		query driven.RecordQuery
		want  []string
	}{
		{
			name:  "insertion order",
			query: driven.RecordQuery{Collection: "analyses"},
			want:  []string{"analyses/a1", "analyses/a2", "analyses/a3"},
		},
		{
			name: "filtered newest first",
			query: driven.RecordQuery{
				Collection: "analyses",
				Equals:     map[string]any{"user_id": "alice"},
				OrderBy:    "created_at",
				Desc:       true,
			},
			want: []string{"analyses/a3", "analyses/a1"},
		},
		{
			name:  "limit",
			query: driven.RecordQuery{Collection: "analyses", OrderBy: "created_at", Limit: 1},
			want:  []string{"analyses/a1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.Query(ctx, tt.query)
			require.NoError(t, err)
			var paths []string
			for _, r := range records {
				paths = append(paths, r.Path)
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestRecordStore_Delete(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.BatchSet(ctx, []driven.RecordWrite{
		{Path: "analyses/a1", Data: []byte(`{}`)},
	}))
	require.NoError(t, store.Delete(ctx, "analyses/a1", "analyses/missing"))
	assert.Zero(t, store.Len())
	assert.NoError(t, store.Close())
}
