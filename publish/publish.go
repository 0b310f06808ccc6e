// Package publish uploads a finished local dataset to a blob store.
//
// Array files are uploaded concurrently, bounded by the resource
// controller's background slots and throttled by its IO limiter, and may be
// compressed on the way. The manifest is uploaded last, rewritten to record
// the stored object names, so a reader never sees a manifest whose arrays
// are missing.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/embedpack/blobstore"
	"github.com/hupe1980/embedpack/internal/compress"
	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/resource"
	"github.com/hupe1980/embedpack/manifest"
	"golang.org/x/sync/errgroup"
)

// ErrNoManifest is returned when a run without a manifest is published.
var ErrNoManifest = errors.New("publish: run has no manifest")

// ProgressFunc is called after each uploaded object.
type ProgressFunc func(name string, bytes int64, elapsed time.Duration)

type options struct {
	fsys        fs.FileSystem
	rc          *resource.Controller
	compression compress.Type
	progress    ProgressFunc
}

// Option configures a Publisher.
type Option func(*options)

// WithFileSystem sets the file system the local dataset is read from.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) { o.fsys = fsys }
}

// WithResourceController bounds upload concurrency and throughput.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithCompression compresses every array object.
func WithCompression(t compress.Type) Option {
	return func(o *options) { o.compression = t }
}

// WithProgress registers a callback invoked after each upload.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// Publisher copies datasets into a blob store.
type Publisher struct {
	store blobstore.BlobStore
	opts  options
}

// New returns a Publisher targeting store.
func New(store blobstore.BlobStore, optFns ...Option) *Publisher {
	o := options{fsys: fs.Default, compression: compress.None}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.rc == nil {
		o.rc = resource.NewController(resource.Config{MaxBackgroundWorkers: 4})
	}
	return &Publisher{store: store, opts: o}
}

type aborter interface {
	Abort() error
}

// Publish uploads the arrays listed in m from dir, then the manifest. It
// returns the manifest as stored.
func (p *Publisher) Publish(ctx context.Context, dir string, m *manifest.Manifest) (*manifest.Manifest, error) {
	if m == nil {
		return nil, ErrNoManifest
	}
	out := *m
	out.Files = make([]manifest.FileInfo, len(m.Files))

	g, gctx := errgroup.WithContext(ctx)
	for i, fi := range m.Files {
		if err := p.opts.rc.AcquireBackground(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer p.opts.rc.ReleaseBackground()

			stored := fi
			if p.opts.compression != compress.None {
				stored.Compression = string(p.opts.compression)
				stored.Stored = fi.Name + p.opts.compression.Suffix()
			}
			if err := p.upload(gctx, filepath.Join(dir, fi.Name), stored.Object()); err != nil {
				return err
			}
			out.Files[i] = stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := manifest.Encode(&out)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := p.store.Put(ctx, manifest.FileName, data); err != nil {
		return nil, fmt.Errorf("publish: %s: %w", manifest.FileName, err)
	}
	p.report(manifest.FileName, int64(len(data)), time.Since(start))
	return &out, nil
}

func (p *Publisher) upload(ctx context.Context, path, object string) (err error) {
	start := time.Now()

	f, err := p.opts.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("publish: open %s: %w", path, err)
	}
	defer f.Close()

	blob, err := p.store.Create(ctx, object)
	if err != nil {
		return fmt.Errorf("publish: create %s: %w", object, err)
	}
	defer func() {
		if err != nil {
			if a, ok := blob.(aborter); ok {
				_ = a.Abort()
			}
		}
	}()

	cw, err := compress.NewWriter(p.opts.compression, resource.NewRateLimitedWriter(ctx, blob, p.opts.rc))
	if err != nil {
		return fmt.Errorf("publish: %s: %w", object, err)
	}
	n, err := io.Copy(cw, f)
	if err != nil {
		_ = cw.Close()
		return fmt.Errorf("publish: upload %s: %w", object, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("publish: flush %s: %w", object, err)
	}
	if err := blob.Close(); err != nil {
		return fmt.Errorf("publish: commit %s: %w", object, err)
	}
	p.report(object, n, time.Since(start))
	return nil
}

func (p *Publisher) report(name string, n int64, d time.Duration) {
	if p.opts.progress != nil {
		p.opts.progress(name, n, d)
	}
}
