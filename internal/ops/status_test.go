package ops

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/recall/internal/errors"
)

func TestStatus(t *testing.T) {
	f, v := fixture(t)

	out, err := Status(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, f.DBPath, out.DBPath)
	assert.Equal(t, f.ImageRoot, out.ImageRoot)
	assert.True(t, out.ImageRootFound)
	assert.Equal(t, "UTC+09:00", out.Zone)
	assert.Equal(t, int64(5), out.Stats.Captures)
	assert.Equal(t, int64(4), out.Stats.WithImages)
	assert.Equal(t, "2024-03-01 18:00:00", out.FirstCapture)
	assert.Equal(t, "2024-03-01 18:04:00", out.LastCapture)
	assert.Equal(t, "deleted: O, first ID: 10, next ID: 15", out.Status.Text)
}

func TestStatus_NoImageStore(t *testing.T) {
	f, v := fixture(t)
	require.NoError(t, os.RemoveAll(f.ImageRoot))

	out, err := Status(context.Background(), v)
	require.NoError(t, err)
	assert.False(t, out.ImageRootFound)
}

func TestStatus_MissingCounterTable(t *testing.T) {
	f, v := fixture(t)
	f.DropTable(t, "IdTable")

	out, err := Status(context.Background(), v)
	require.NoError(t, err)
	require.NotNil(t, out.Status.Error)
	assert.Nil(t, out.Status.Deletion, "never reported as no deletion")
	assert.Equal(t, string(errors.ErrSchema), out.Status.Error.Code)
}

func TestStatus_SchemaError(t *testing.T) {
	f, v := fixture(t)
	f.DropTable(t, "WindowCaptureAppRelation")

	_, err := Status(context.Background(), v)
	assert.True(t, errors.Is(err, errors.ErrSchema), "got %v", err)
}
