package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// S3Config holds the bucket settings of an S3 backed remote directory
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Directory exposes one bucket as a remote directory tree.
// Remote paths map to keys without the leading slash, "/in/a.csv" is key "in/a.csv".
type S3Directory struct {
	client    s3iface.S3API
	bucket    string
	chunkSize int
	logger    outbound.Logger
}

var _ outbound.RemoteFileDirectory = (*S3Directory)(nil)

// NewS3Directory creates the S3 client. Static credentials are used when set,
// otherwise the default AWS credential chain applies.
func NewS3Directory(cfg S3Config, chunkSize int, logger outbound.Logger) (*S3Directory, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", model.ErrConfiguration)
	}

	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithS3ForcePathStyle(cfg.ForcePathStyle)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating s3 session: %v", model.ErrConfiguration, err)
	}

	return NewS3DirectoryWithClient(s3.New(sess), cfg.Bucket, chunkSize, logger), nil
}

func NewS3DirectoryWithClient(client s3iface.S3API, bucket string, chunkSize int, logger outbound.Logger) *S3Directory {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &S3Directory{
		client:    client,
		bucket:    bucket,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ListFiles returns the objects directly under dirPath, sub-prefixes excluded
func (d *S3Directory) ListFiles(ctx context.Context, dirPath string) ([]*model.RemoteFileInfo, error) {
	prefix := directoryPrefix(dirPath)
	files := make([]*model.RemoteFileInfo, 0)

	var buildErr error
	err := d.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(object.Key), prefix)
			if name == "" {
				// folder marker
				continue
			}

			info, err := model.NewRemoteFileInfo(name, dirPath,
				uint64(aws.Int64Value(object.Size)), aws.TimeValue(object.LastModified).UTC())
			if err != nil {
				buildErr = err
				return false
			}
			files = append(files, info)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing s3://%s/%s: %v", model.ErrTransport, d.bucket, prefix, err)
	}
	if buildErr != nil {
		return nil, buildErr
	}

	d.logger.Debug("Listed s3 prefix", "bucket", d.bucket, "prefix", prefix, "files", len(files))
	return files, nil
}

// DownloadFile streams the object body in chunks; the chunk slice is reused between calls
func (d *S3Directory) DownloadFile(ctx context.Context, filePath string, handle outbound.ChunkHandler) error {
	key := objectKey(filePath)

	out, err := d.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: getting s3://%s/%s: %v", model.ErrTransport, d.bucket, key, err)
	}
	defer out.Body.Close()

	buf := make([]byte, d.chunkSize)
	for {
		n, err := io.ReadFull(out.Body, buf)
		if n > 0 {
			if herr := handle(buf[:n]); herr != nil {
				return herr
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("%w: reading s3://%s/%s: %v", model.ErrTransport, d.bucket, key, err)
		}
	}
}

// DeleteResource removes the object name under dirPath
func (d *S3Directory) DeleteResource(ctx context.Context, name, dirPath string) error {
	key := directoryPrefix(dirPath) + name

	_, err := d.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %v", model.ErrDeleteFile, dirPath, name, err)
	}
	return nil
}

// directoryPrefix maps "/in" and "/in/" to "in/", and "/" or "" to the bucket root
func directoryPrefix(dirPath string) string {
	trimmed := strings.Trim(dirPath, "/")
	if trimmed == "" {
		return ""
	}
	return trimmed + "/"
}

func objectKey(filePath string) string {
	return strings.TrimPrefix(filePath, "/")
}
