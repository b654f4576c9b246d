package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Reader implements domain.BlobReader over the archive namespace.
type Reader struct {
	c *Client
}

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// Get opens the archived object at path. The caller closes the body.
// Missing objects yield domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(r.c.key(path)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get %s: %w", path, wrapNotFound(err))
	}
	return out.Body, nil
}

// List returns the archived objects under prefix, newest first. Paths are
// relative to the archive namespace; folder markers are skipped.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo

	pages := s3.NewListObjectsV2Paginator(r.c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.c.bucket),
		Prefix: aws.String(r.c.key(prefix)),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			info := domain.BlobInfo{
				Path:        r.c.path(key),
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeOf(key),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// Exists reports whether path is archived.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(r.c.key(path)),
	})
	switch err = wrapNotFound(err); {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
}

// contentTypeOf infers the type from the archive file extension, since
// ListObjectsV2 does not return it.
func contentTypeOf(key string) string {
	switch {
	case strings.HasSuffix(key, ".jsonl"):
		return contentTypeJSONL
	case strings.HasSuffix(key, ".json"):
		return contentTypeJSON
	default:
		return ""
	}
}

// wrapNotFound maps NoSuchKey, NotFound and bare 404 responses onto
// domain.ErrNotFound. HeadObject and some S3-compatible providers only
// return the last form.
func wrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &nsk) || errors.As(err, &nf) ||
		(errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound) {
		return errors.Join(domain.ErrNotFound, err)
	}
	return err
}

var _ domain.BlobReader = (*Reader)(nil)
