package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"
)

// partSize is the S3 minimum multipart part size. Settlement bet listings
// of busy markets can exceed it.
const partSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter over the archive namespace.
type Writer struct {
	c        *Client
	uploader *manager.Uploader
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		c: c,
		uploader: manager.NewUploader(c.s3, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
	}
}

// Put uploads data to path. Payloads of unknown size or larger than one
// part go through the multipart upload manager; the rest are a single
// PutObject.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(w.c.key(path)),
		Body:        data,
		ContentType: aws.String(contentType),
	}
	if r, ok := data.(*bytes.Reader); ok && r.Size() <= partSize {
		if _, err := w.c.s3.PutObject(ctx, in); err != nil {
			return fmt.Errorf("s3blob: put %s: %w", path, err)
		}
		return nil
	}
	if _, err := w.uploader.Upload(ctx, in); err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
