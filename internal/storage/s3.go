package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Provider streams objects into a bucket with the multipart uploader.
type S3Provider struct {
	client *s3.Client
	bucket string
}

func NewS3Provider(client *s3.Client, bucket string) *S3Provider {
	return &S3Provider{
		client: client,
		bucket: bucket,
	}
}

// Create starts a multipart upload fed by a pipe. The upload runs until the
// object is closed or aborted.
func (p *S3Provider) Create(ctx context.Context, key string) (Object, error) {
	reader, writer := io.Pipe()
	done := make(chan error, 1)

	go func() {
		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 5
		})

		slog.Info("Starting S3 upload", "bucket", p.bucket, "key", key)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   reader,
		})
		_ = reader.CloseWithError(err)

		if err != nil {
			slog.Error("S3 upload failed", "key", key, "error", err)
			done <- fmt.Errorf("s3 upload failed: %w", err)
			return
		}
		slog.Info("S3 upload finished", "key", key)
		done <- nil
	}()

	return &s3Object{w: writer, done: done}, nil
}

func (p *S3Provider) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, key)
}

type s3Object struct {
	w    *io.PipeWriter
	done chan error
}

func (o *s3Object) Write(b []byte) (int, error) {
	return o.w.Write(b)
}

func (o *s3Object) Close() error {
	_ = o.w.Close()
	return <-o.done
}

// Abort fails the pipe so the uploader aborts the multipart upload.
func (o *s3Object) Abort(cause error) {
	_ = o.w.CloseWithError(fmt.Errorf("export aborted: %w", cause))
	<-o.done
}
