package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jlaffaye/ftp"
	"google.golang.org/api/option"

	"github.com/casa-dashboard/inaddash/internal/httputil"
)

// ErrNotAvailable marks a snapshot file that has not been generated yet.
var ErrNotAvailable = errors.New("snapshot not available")

// Source reads named files from a snapshot tree.
type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
	String() string
}

// Open picks a Source from a location string. Supported forms are
// http(s)://host/base, ftp://host[:port]/dir, gs://bucket/prefix, file:///dir
// and plain directory paths.
func Open(ctx context.Context, location string, gcsOpts ...option.ClientOption) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("open snapshot: empty location")
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return NewDirSource(location), nil
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPSource(location, nil), nil
	case "ftp":
		return NewFTPSource(u.Host, u.Path), nil
	case "gs":
		return NewGCSSource(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), gcsOpts...)
	case "file":
		return NewDirSource(u.Path), nil
	}
	return nil, fmt.Errorf("open snapshot: unsupported scheme %q", u.Scheme)
}

// HTTPSource reads <base>/analysis/<name>.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource creates a source rooted at base. A nil client uses the default.
func NewHTTPSource(base string, client *http.Client) *HTTPSource {
	if client == nil {
		client = httputil.NewClient()
	}
	return &HTTPSource{base: strings.TrimRight(base, "/"), client: client}
}

func (s *HTTPSource) String() string { return s.base }

func (s *HTTPSource) Read(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/analysis/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d: %w", name, resp.StatusCode, ErrNotAvailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// DirSource reads <root>/analysis/<name> from local disk.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) String() string { return s.root }

func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.root, "analysis", name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", name, ErrNotAvailable)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// FTPSource reads snapshot files from an anonymous FTP server.
type FTPSource struct {
	addr    string
	dir     string
	timeout time.Duration
}

func NewFTPSource(host, dir string) *FTPSource {
	if !strings.Contains(host, ":") {
		host += ":21"
	}
	return &FTPSource{addr: host, dir: dir, timeout: 30 * time.Second}
}

func (s *FTPSource) String() string { return "ftp://" + s.addr + s.dir }

func (s *FTPSource) Read(ctx context.Context, name string) ([]byte, error) {
	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path.Join(s.dir, "analysis", name))
	if err != nil {
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
			return nil, fmt.Errorf("ftp retr %s: %w", name, ErrNotAvailable)
		}
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// GCSSource reads gs://<bucket>/<prefix>/analysis/<name>.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSource creates a storage client. Pass option.WithoutAuthentication()
// for public buckets.
func NewGCSSource(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSSource, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *GCSSource) String() string { return "gs://" + s.bucket + "/" + s.prefix }

func (s *GCSSource) Read(ctx context.Context, name string) ([]byte, error) {
	object := path.Join(s.prefix, "analysis", name)
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcs %s: %w", object, ErrNotAvailable)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs open %s: %w", object, err)
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", object, err)
	}
	return body, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}
