// Package s3 provides a project tree stored in an S3-compatible bucket.
// Folders are common prefixes under "/" delimited listings; the CLSI
// fetches files through presigned GET URLs.
package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/tree"
)

// Config holds S3 connection and layout settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	// KeyPrefix is the object key prefix of the project, e.g. "projects/42".
	KeyPrefix string
	// Prefix is the tree path the project is shown under.
	Prefix string
	// URLExpiry bounds presigned resource URLs.
	URLExpiry time.Duration
}

// Source implements storage.Source on a bucket.
type Source struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
	prefix    string
	expiry    time.Duration
}

// New creates a new S3 tree source.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	keyPrefix := strings.Trim(cfg.KeyPrefix, "/")
	if keyPrefix != "" {
		keyPrefix += "/"
	}

	return &Source{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		keyPrefix: keyPrefix,
		prefix:    strings.TrimSuffix(cfg.Prefix, "/"),
		expiry:    expiry,
	}, nil
}

// Type returns "s3".
func (s *Source) Type() string {
	return "s3"
}

// Prefix returns the tree path prefix.
func (s *Source) Prefix() string {
	return s.prefix
}

// Root returns the unloaded project root.
func (s *Source) Root(_ context.Context) (*models.FileNode, error) {
	rootPath := s.prefix
	if rootPath == "" {
		rootPath = "/"
	}
	return &models.FileNode{
		Name: s.bucket,
		Path: rootPath,
		Type: models.NodeFolder,
	}, nil
}

// Load lists one directory level with a "/" delimiter.
func (s *Source) Load(ctx context.Context, dir *models.FileNode) error {
	start := time.Now()
	listPrefix := s.dirKey(dir.Path)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})

	var folders, files []*models.FileNode
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordS3Operation("list_objects", time.Since(start), false)
			metrics.RecordTreeLoad(s.Type(), false)
			return fmt.Errorf("list objects %s: %w", listPrefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), listPrefix), "/")
			if name == "" {
				continue
			}
			folders = append(folders, &models.FileNode{
				Name: name,
				Path: tree.BuildChildPath(dir.Path, name),
				Type: models.NodeFolder,
			})
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			// Skip the directory marker object.
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			files = append(files, &models.FileNode{
				Name:    name,
				Path:    tree.BuildChildPath(dir.Path, name),
				Type:    models.NodeFile,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	dir.Children = append(folders, files...)
	dir.Loaded = true

	metrics.RecordS3Operation("list_objects", time.Since(start), true)
	metrics.RecordTreeLoad(s.Type(), true)
	logging.WithContext(ctx).Debug("S3 directory loaded",
		zap.String("prefix", listPrefix),
		zap.Int("folders", len(folders)),
		zap.Int("files", len(files)))
	return nil
}

// ResourceURL returns a presigned GET URL for the object behind path.
func (s *Source) ResourceURL(ctx context.Context, path string) (string, error) {
	start := time.Now()
	key := s.ObjectKey(path)
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		metrics.RecordS3Operation("presign_get", time.Since(start), false)
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	metrics.RecordS3Operation("presign_get", time.Since(start), true)
	return req.URL, nil
}

// ObjectKey maps a project-relative path to its object key.
func (s *Source) ObjectKey(path string) string {
	return s.keyPrefix + strings.TrimPrefix(path, "/")
}

func (s *Source) dirKey(treePath string) string {
	rel := tree.TrimPrefix(treePath, s.prefix)
	if rel == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + strings.TrimSuffix(rel, "/") + "/"
}
