package buildrec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestFileRepository_AppendAndLoad persists two records and reads them back.
func TestFileRepository_AppendAndLoad(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "builds.json"))
	ctx := context.Background()

	// Empty store.
	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first := Record{
		ID:             uuid.NewString(),
		DescriptorPath: "bundle.yaml",
		ArtifactPath:   "dist/sageodbc",
		Name:           "sageodbc",
		Version:        "1.0.0",
		Checksum:       "c2hhNTEy",
		StartedAt:      time.Unix(100, 0).UTC(),
		FinishedAt:     time.Unix(101, 0).UTC(),
	}

	require.NoError(t, repo.Append(ctx, first))

	second := first
	second.ID = uuid.NewString()
	require.NoError(t, repo.Append(ctx, second))

	records, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, first, records[0])
	require.Equal(t, second.ID, records[1].ID)
}
