package feed

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// ErrInvalidRef is returned for feed references that cannot be resolved.
var ErrInvalidRef = errors.New("invalid feed reference")

// Open resolves a feed reference to a readable stream.
// Supported references are local paths and gs://bucket/object URLs;
// either may end in .gz, in which case the stream is decompressed.
func Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidRef)
	}

	var (
		rc  io.ReadCloser
		err error
	)
	if strings.HasPrefix(ref, gcsScheme) {
		rc, err = openGCS(ctx, ref)
	} else {
		rc, err = os.Open(ref)
		if err != nil {
			err = fmt.Errorf("failed to open feed file %s: %w", ref, err)
		}
	}
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(strings.ToLower(ref), ".gz") {
		return rc, nil
	}

	gz, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to open gzip feed %s: %w", ref, err)
	}
	return &stackedReadCloser{Reader: gz, closers: []io.Closer{gz, rc}}, nil
}

// ParseGCSRef splits gs://bucket/path/to/object into bucket and object names.
func ParseGCSRef(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, gcsScheme) {
		return "", "", fmt.Errorf("%w: %q is not a gs:// reference", ErrInvalidRef, ref)
	}
	rest := strings.TrimPrefix(ref, gcsScheme)
	bucket, object, found := strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q must name a bucket and an object", ErrInvalidRef, ref)
	}
	return bucket, object, nil
}

func openGCS(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSRef(ref)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}

	return &stackedReadCloser{Reader: r, closers: []io.Closer{r, client}}, nil
}

// stackedReadCloser closes a chain of readers innermost first.
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
