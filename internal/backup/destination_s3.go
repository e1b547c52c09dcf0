package backup

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/yourusername/maintenance-gate/internal/config"
)

// S3Destination stores backups in AWS S3 or S3-compatible storage
type S3Destination struct {
	bucket string
	prefix string
	client s3iface.S3API
}

// NewS3Destination creates a new S3 destination
func NewS3Destination(cfg config.MirrorConfig) (*S3Destination, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires a bucket")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, "")
	}

	// Custom endpoint for S3-compatible storage (MinIO, DigitalOcean Spaces, etc.)
	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	log.Printf("[S3Dest] Initialized S3 destination: bucket=%s, region=%s", cfg.S3Bucket, cfg.S3Region)

	return newS3DestinationWithClient(s3.New(sess), cfg.S3Bucket, cfg.Path), nil
}

func newS3DestinationWithClient(client s3iface.S3API, bucket, prefix string) *S3Destination {
	return &S3Destination{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

func (sd *S3Destination) key(filename string) string {
	if sd.prefix == "" {
		return filename
	}
	return path.Join(sd.prefix, filename)
}

// Upload uploads a backup file to S3
func (sd *S3Destination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if sizeBytes >= 0 && int64(len(data)) != sizeBytes {
		return fmt.Errorf("size mismatch: expected %d bytes, read %d bytes", sizeBytes, len(data))
	}

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = sd.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(sd.bucket),
		Key:           aws.String(sd.key(filename)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Printf("[S3Dest] Upload complete: s3://%s/%s", sd.bucket, sd.key(filename))
	return nil
}

// Delete removes a backup file from S3
func (sd *S3Destination) Delete(filename string) error {
	_, err := sd.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(sd.bucket),
		Key:    aws.String(sd.key(filename)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// List returns all backup files under the destination prefix
func (sd *S3Destination) List() ([]BackupFile, error) {
	prefix := sd.prefix
	if prefix != "" {
		prefix += "/"
	}

	var files []BackupFile
	err := sd.client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: aws.String(sd.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			files = append(files, BackupFile{
				Filename:  path.Base(key),
				SizeBytes: aws.Int64Value(obj.Size),
				CreatedAt: aws.TimeValue(obj.LastModified).Unix(),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	return files, nil
}

// GetType returns the destination type
func (sd *S3Destination) GetType() string {
	return "s3"
}
