package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/script-bundler/internal/config"
	"github.com/oshokin/script-bundler/internal/logger"
	"github.com/oshokin/script-bundler/internal/service/builder"
)

// errPublishNotConfigured is returned when the settings file carries no
// publish section at all.
var errPublishNotConfigured = errors.New("publish storage is not configured")

// objectStore is the slice of the storage client the publisher needs.
// minio.Client satisfies it; tests substitute their own.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// newObjectStore builds the real storage client. Swapped out in tests.
var newObjectStore = func(cfg *config.PublishConfig) (objectStore, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Options contains inputs for the publish entry point.
type Options struct {
	// ArtifactPath is the artifact to upload.
	ArtifactPath string
	// ReleasePath is the release manifest to upload. Defaults to the
	// manifest the build wrote next to the artifact.
	ReleasePath string
	// SignaturePath is an optional detached signature of the release
	// manifest. Defaults to ReleasePath + ".asc" when that file exists.
	SignaturePath string
	// ConfigPath is an optional path to bundler settings.
	ConfigPath string
}

// publish holds the state of a single publish execution.
type publish struct {
	// opts are the caller's inputs after defaulting.
	opts *Options
	// cfg is the validated publish section of the settings.
	cfg *config.PublishConfig
	// store is the storage client.
	store objectStore
	// release names and versions the uploaded objects.
	release *builder.Release
}

// Run uploads the artifact, its release manifest and the signature if one
// is present.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-publish")

	p, err := newPublish(opts)
	if err != nil {
		return err
	}

	if err = p.run(ctx); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	return nil
}

// newPublish loads settings, the release manifest and the storage client.
func newPublish(opts *Options) (*publish, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cfg.Publish.Endpoint == "" {
		return nil, errPublishNotConfigured
	}

	if opts.ReleasePath == "" {
		opts.ReleasePath = siblingReleasePath(opts.ArtifactPath)
	}

	release, err := builder.LoadRelease(opts.ReleasePath)
	if err != nil {
		return nil, err
	}

	if opts.SignaturePath == "" {
		candidate := opts.ReleasePath + ".asc"
		if _, statErr := os.Stat(candidate); statErr == nil {
			opts.SignaturePath = candidate
		}
	}

	store, err := newObjectStore(&cfg.Publish)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &publish{
		opts:    opts,
		cfg:     &cfg.Publish,
		store:   store,
		release: release,
	}, nil
}

// run ensures the bucket and uploads every file of the release.
func (p *publish) run(ctx context.Context) error {
	if err := p.ensureBucket(ctx); err != nil {
		return err
	}

	uploads := []struct {
		localPath   string
		contentType string
	}{
		{p.opts.ArtifactPath, "application/octet-stream"},
		{p.opts.ReleasePath, "application/yaml"},
	}

	if p.opts.SignaturePath != "" {
		uploads = append(uploads, struct {
			localPath   string
			contentType string
		}{p.opts.SignaturePath, "application/pgp-signature"})
	}

	for _, upload := range uploads {
		key := p.objectKey(filepath.Base(upload.localPath))

		logger.InfoKV(ctx, "Uploading", "bucket", p.cfg.Bucket, "key", key)

		_, err := p.store.FPutObject(ctx, p.cfg.Bucket, key, upload.localPath,
			minio.PutObjectOptions{ContentType: upload.contentType})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	logger.InfoKV(ctx, "Release published",
		"name", p.release.Name, "version", p.release.Version)

	return nil
}

// ensureBucket creates the destination bucket when it does not exist yet.
func (p *publish) ensureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.cfg.Bucket, err)
	}

	if exists {
		return nil
	}

	if err = p.store.MakeBucket(ctx, p.cfg.Bucket,
		minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.cfg.Bucket, err)
	}

	return nil
}

// objectKey builds `<prefix>/<name>/<version>/<file>`, dropping an empty prefix.
func (p *publish) objectKey(fileName string) string {
	return path.Join(p.cfg.Prefix, p.release.Name, p.release.Version, fileName)
}

// siblingReleasePath guesses the release manifest the build wrote next to
// the artifact. Windows artifacts carry an .exe suffix the manifest does not.
func siblingReleasePath(artifactPath string) string {
	base := filepath.Base(artifactPath)
	if ext := filepath.Ext(base); ext == ".exe" {
		base = base[:len(base)-len(ext)]
	}

	return filepath.Join(filepath.Dir(artifactPath), base+builder.ReleaseManifestSuffix)
}
