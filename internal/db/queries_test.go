package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/recall/internal/capture"
	"github.com/hpungsan/recall/internal/db/dbtest"
	"github.com/hpungsan/recall/internal/errors"
)

// seed inserts captures whose ids and timestamps disagree in order so tests
// catch any reliance on id order for browsing.
func seed(t *testing.T) *dbtest.Fixture {
	t.Helper()
	f := dbtest.New(t)
	f.Insert(t,
		dbtest.Row{ID: 1, Name: "cap", Token: dbtest.Token("tokA"), Title: "Inbox", Timestamp: 3000, App: "Outlook", OCR: "quarterly numbers"},
		dbtest.Row{ID: 2, Name: "cap", Title: "Desktop", Timestamp: 1000},
		dbtest.Row{ID: 3, Name: "cap", Token: dbtest.Token("tokB"), Title: "Report.docx", Timestamp: 1000, App: "Word", File: `C:\Users\a\Report.docx`},
		dbtest.Row{ID: 4, Name: "cap", Token: dbtest.Token("tokC"), Title: "Search", Timestamp: 2000, App: "Edge", Web: "https://example.com/q", OCR: "example search"},
		dbtest.Row{ID: 5, Name: "cap", Token: dbtest.Token("tokD"), Title: "Search 2", Timestamp: 1000},
	)
	return f
}

func TestLoadAll(t *testing.T) {
	f := seed(t)
	repo := NewRepository(f.DBPath)

	got, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i, c := range got {
		assert.Equal(t, int64(i+1), c.ID, "ordered by id")
	}

	assert.Nil(t, got[1].ImageToken)
	assert.Nil(t, got[1].AppName)
	require.NotNil(t, got[0].AppName)
	assert.Equal(t, "Outlook", *got[0].AppName)
	require.NotNil(t, got[2].FilePath)
	assert.Equal(t, `C:\Users\a\Report.docx`, *got[2].FilePath)
	require.NotNil(t, got[3].WebURI)
	assert.Equal(t, "https://example.com/q", *got[3].WebURI)
	assert.Equal(t, int64(2000), got[3].Timestamp)
}

func TestLoadAll_Empty(t *testing.T) {
	f := dbtest.New(t)

	got, err := NewRepository(f.DBPath).LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadWithImages(t *testing.T) {
	f := seed(t)

	got, err := NewRepository(f.DBPath).LoadWithImages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 4, "only rows with an image token")

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Timestamp, got[i].Timestamp, "non-decreasing timestamps")
	}
	// Equal timestamps keep id order.
	assert.Equal(t, []int64{3, 5, 4, 1}, ids(got))

	assert.Equal(t, "tokB", got[0].ImageToken)
	assert.Nil(t, got[0].OCRText)
	require.NotNil(t, got[3].OCRText)
	assert.Equal(t, "quarterly numbers", *got[3].OCRText)
}

func TestLoadWithImagesInRange(t *testing.T) {
	f := seed(t)
	repo := NewRepository(f.DBPath)
	ctx := context.Background()

	all, err := repo.LoadWithImages(ctx)
	require.NoError(t, err)

	got, err := repo.LoadWithImagesInRange(ctx, 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 4}, ids(got))

	allIDs := ids(all)
	for _, c := range got {
		assert.Contains(t, allIDs, c.ID, "subset of the full browse set")
		assert.GreaterOrEqual(t, c.Timestamp, int64(1000))
		assert.LessOrEqual(t, c.Timestamp, int64(2000))
	}

	// Inclusive on both ends.
	got, err = repo.LoadWithImagesInRange(ctx, 3000, 3000)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestLoadWithImagesInRange_NoMatch(t *testing.T) {
	f := seed(t)

	got, err := NewRepository(f.DBPath).LoadWithImagesInRange(context.Background(), 5000, 9000)
	require.NoError(t, err)
	assert.NotNil(t, got, "empty is a state, not nil")
	assert.Empty(t, got)
}

func TestLoadWithImagesInRange_Inverted(t *testing.T) {
	f := seed(t)

	_, err := NewRepository(f.DBPath).LoadWithImagesInRange(context.Background(), 2000, 1000)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestMinMaxImageTimestamp(t *testing.T) {
	f := seed(t)

	lo, hi, err := NewRepository(f.DBPath).MinMaxImageTimestamp(context.Background())
	require.NoError(t, err)
	require.NotNil(t, lo)
	require.NotNil(t, hi)
	assert.Equal(t, int64(1000), *lo)
	assert.Equal(t, int64(3000), *hi)
}

func TestMinMaxImageTimestamp_NoImages(t *testing.T) {
	f := dbtest.New(t)
	f.Insert(t, dbtest.Row{ID: 1, Name: "cap", Timestamp: 1000})

	lo, hi, err := NewRepository(f.DBPath).MinMaxImageTimestamp(context.Background())
	require.NoError(t, err)
	assert.Nil(t, lo)
	assert.Nil(t, hi)
}

func TestCheckDeletion(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *dbtest.Fixture)
		want  capture.DeletionStatus
	}{
		{
			name: "intact single capture",
			setup: func(t *testing.T, f *dbtest.Fixture) {
				f.Insert(t, dbtest.Row{ID: 5, Name: "cap", Timestamp: 1})
			},
			want: capture.DeletionStatus{FirstLiveID: 5, NextID: 6, Purged: false},
		},
		{
			name: "gap after the oldest row",
			setup: func(t *testing.T, f *dbtest.Fixture) {
				f.Insert(t,
					dbtest.Row{ID: 5, Name: "cap", Timestamp: 1},
					dbtest.Row{ID: 6, Name: "cap", Timestamp: 2},
					dbtest.Row{ID: 8, Name: "cap", Timestamp: 3},
				)
			},
			want: capture.DeletionStatus{FirstLiveID: 5, NextID: 9, Purged: true},
		},
		{
			name: "oldest rows evicted",
			setup: func(t *testing.T, f *dbtest.Fixture) {
				f.Insert(t,
					dbtest.Row{ID: 7, Name: "cap", Timestamp: 7},
					dbtest.Row{ID: 8, Name: "cap", Timestamp: 8},
					dbtest.Row{ID: 9, Name: "cap", Timestamp: 9},
				)
			},
			want: capture.DeletionStatus{FirstLiveID: 7, NextID: 10, Purged: true},
		},
		{
			// Only the first live id is compared, so eviction down to the
			// newest row looks intact.
			name: "eviction down to one row",
			setup: func(t *testing.T, f *dbtest.Fixture) {
				f.Insert(t, dbtest.Row{ID: 9, Name: "cap", Timestamp: 9})
			},
			want: capture.DeletionStatus{FirstLiveID: 9, NextID: 10, Purged: false},
		},
		{
			name:  "empty capture table",
			setup: func(t *testing.T, f *dbtest.Fixture) {},
			want:  capture.DeletionStatus{FirstLiveID: 0, NextID: 1, Purged: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := dbtest.New(t)
			tt.setup(t, f)

			got, err := NewRepository(f.DBPath).CheckDeletion(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckDeletion_CounterInvalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *dbtest.Fixture)
	}{
		{"missing IdTable", func(t *testing.T, f *dbtest.Fixture) { f.DropTable(t, "IdTable") }},
		{"empty IdTable", func(t *testing.T, f *dbtest.Fixture) { f.SetCounter(t) }},
		{"multi-row IdTable", func(t *testing.T, f *dbtest.Fixture) { f.SetCounter(t, 6, 7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := dbtest.New(t)
			f.Insert(t, dbtest.Row{ID: 5, Name: "cap", Timestamp: 1})
			tt.setup(t, f)

			_, err := NewRepository(f.DBPath).CheckDeletion(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSchema), "got %v", err)
		})
	}
}

func TestCheckDeletion_EmptyCounterReason(t *testing.T) {
	f := dbtest.New(t)
	f.SetCounter(t)

	_, err := NewRepository(f.DBPath).CheckDeletion(context.Background())
	require.Error(t, err)
	assert.Equal(t, "COUNTER_INVALID", errors.As(err).Details["reason"])
}

func TestRepository_SchemaError(t *testing.T) {
	f := dbtest.New(t)
	f.DropTable(t, "WindowCaptureTextIndex_content")

	_, err := NewRepository(f.DBPath).LoadWithImages(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchema), "got %v", err)
}

func TestRepository_NotFound(t *testing.T) {
	repo := NewRepository("/definitely/not/here/ukg.db")

	_, err := repo.LoadAll(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	_, err = repo.CheckDeletion(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestStats(t *testing.T) {
	f := seed(t)

	s, err := NewRepository(f.DBPath).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Captures)
	assert.Equal(t, int64(4), s.WithImages)
	assert.Equal(t, int64(3), s.Apps)
	require.NotNil(t, s.FirstTimestamp)
	assert.Equal(t, int64(1000), *s.FirstTimestamp)
	require.NotNil(t, s.LastTimestamp)
	assert.Equal(t, int64(3000), *s.LastTimestamp)
}

func TestEmptyTokenCountsAsNoImage(t *testing.T) {
	f := seed(t)
	f.Insert(t, dbtest.Row{ID: 6, Name: "cap", Token: dbtest.Token(""), Title: "blank", Timestamp: 4000})
	repo := NewRepository(f.DBPath)
	ctx := context.Background()

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "X", all[5].ImageMark())

	withImages, err := repo.LoadWithImages(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids(withImages), int64(6))

	_, hi, err := repo.MinMaxImageTimestamp(ctx)
	require.NoError(t, err)
	require.NotNil(t, hi)
	assert.Equal(t, int64(3000), *hi)

	s, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(withImages)), s.WithImages)
}

func ids(cs []capture.CaptureWithOCR) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
