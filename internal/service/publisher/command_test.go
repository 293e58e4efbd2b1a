package publisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/script-bundler/internal/config"
	"github.com/oshokin/script-bundler/internal/service/builder"
)

// fakeStore records uploads instead of talking to real storage.
type fakeStore struct {
	bucketExists bool
	madeBuckets  []string
	uploads      map[string]string
}

func (s *fakeStore) BucketExists(_ context.Context, _ string) (bool, error) {
	return s.bucketExists, nil
}

func (s *fakeStore) MakeBucket(_ context.Context, bucketName string, _ minio.MakeBucketOptions) error {
	s.madeBuckets = append(s.madeBuckets, bucketName)
	return nil
}

func (s *fakeStore) FPutObject(_ context.Context, _, objectName, filePath string,
	_ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if s.uploads == nil {
		s.uploads = make(map[string]string)
	}

	s.uploads[objectName] = filePath

	return minio.UploadInfo{Key: objectName}, nil
}

// withFakeStore swaps the storage constructor for the test's lifetime.
func withFakeStore(t *testing.T, store *fakeStore) {
	t.Helper()

	original := newObjectStore
	newObjectStore = func(_ *config.PublishConfig) (objectStore, error) {
		return store, nil
	}

	t.Cleanup(func() {
		newObjectStore = original
	})
}

// releaseDir lays out an artifact, a release manifest and a settings file.
func releaseDir(t *testing.T, withSignature bool) (string, string) {
	t.Helper()

	dir := t.TempDir()

	artifactPath := filepath.Join(dir, "sageodbc")
	require.NoError(t, os.WriteFile(artifactPath, []byte("artifact"), 0o755))

	releasePath := filepath.Join(dir, "sageodbc"+builder.ReleaseManifestSuffix)
	require.NoError(t, builder.SaveRelease(releasePath, &builder.Release{
		Version:  "1.2.3",
		Name:     "sageodbc",
		Artifact: "sageodbc",
		Files:    map[string]string{"sageodbc": "aGFzaA=="},
	}))

	if withSignature {
		require.NoError(t, os.WriteFile(releasePath+".asc", []byte("signature"), 0o644))
	}

	configPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, &config.Config{
		Publish: config.PublishConfig{
			Endpoint:  "storage.example.com:9000",
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "releases",
			Prefix:    "bundles",
		},
	}))

	return artifactPath, configPath
}

// TestRun_UploadsReleaseFiles keys the objects by name and version.
func TestRun_UploadsReleaseFiles(t *testing.T) {
	store := &fakeStore{bucketExists: true}
	withFakeStore(t, store)

	artifactPath, configPath := releaseDir(t, true)

	require.NoError(t, Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		ConfigPath:   configPath,
	}))

	require.Len(t, store.uploads, 3)
	require.Contains(t, store.uploads, "bundles/sageodbc/1.2.3/sageodbc")
	require.Contains(t, store.uploads, "bundles/sageodbc/1.2.3/sageodbc-release.yaml")
	require.Contains(t, store.uploads, "bundles/sageodbc/1.2.3/sageodbc-release.yaml.asc")
	require.Empty(t, store.madeBuckets)
}

// TestRun_CreatesMissingBucket ensures the destination bucket exists.
func TestRun_CreatesMissingBucket(t *testing.T) {
	store := &fakeStore{}
	withFakeStore(t, store)

	artifactPath, configPath := releaseDir(t, false)

	require.NoError(t, Run(context.Background(), &Options{
		ArtifactPath: artifactPath,
		ConfigPath:   configPath,
	}))

	require.Equal(t, []string{"releases"}, store.madeBuckets)
	require.Len(t, store.uploads, 2)
}

// TestRun_RequiresPublishSettings refuses to run without storage settings.
func TestRun_RequiresPublishSettings(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, &config.Config{LogLevel: "info"}))

	err := Run(context.Background(), &Options{
		ArtifactPath: filepath.Join(dir, "sageodbc"),
		ConfigPath:   configPath,
	})
	require.ErrorIs(t, err, errPublishNotConfigured)
}

// TestRun_MissingReleaseManifest fails before any upload happens.
func TestRun_MissingReleaseManifest(t *testing.T) {
	store := &fakeStore{bucketExists: true}
	withFakeStore(t, store)

	_, configPath := releaseDir(t, false)

	err := Run(context.Background(), &Options{
		ArtifactPath: filepath.Join(t.TempDir(), "sageodbc"),
		ConfigPath:   configPath,
	})
	require.Error(t, err)
	require.Empty(t, store.uploads)
}
