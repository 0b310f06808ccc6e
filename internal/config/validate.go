package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hupe1980/embedpack/internal/compress"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Kind is the type of an output location.
type Kind int

const (
	// KindLocal is a directory on the local filesystem.
	KindLocal Kind = iota
	// KindS3 is an s3://bucket/prefix location.
	KindS3
	// KindMinIO is a minio://host[:port]/bucket/prefix location.
	KindMinIO
)

func (k Kind) String() string {
	switch k {
	case KindS3:
		return "s3"
	case KindMinIO:
		return "minio"
	default:
		return "local"
	}
}

// Location is a parsed output location.
type Location struct {
	Kind Kind
	// Dir is set for local outputs.
	Dir string
	// Endpoint is the host[:port] of a MinIO server.
	Endpoint string
	Bucket   string
	// Prefix has no leading slash and, when non-empty, a trailing one.
	Prefix string
}

// Remote reports whether the location is an object store.
func (l Location) Remote() bool { return l.Kind != KindLocal }

func (l Location) String() string {
	switch l.Kind {
	case KindS3:
		return "s3://" + l.Bucket + "/" + l.Prefix
	case KindMinIO:
		return "minio://" + l.Endpoint + "/" + l.Bucket + "/" + l.Prefix
	default:
		return l.Dir
	}
}

// ParseLocation parses a local directory, s3://bucket/prefix or
// minio://host[:port]/bucket/prefix.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty output location", ErrInvalid)
	}
	scheme, _, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Kind: KindLocal, Dir: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Location{}, fmt.Errorf("%w: output %q: %w", ErrInvalid, s, err)
	}
	path := strings.Trim(u.Path, "/")

	switch scheme {
	case "s3":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: output %q has no bucket", ErrInvalid, s)
		}
		return Location{Kind: KindS3, Bucket: u.Host, Prefix: prefix(path)}, nil
	case "minio":
		bucket, rest, _ := strings.Cut(path, "/")
		if u.Host == "" || bucket == "" {
			return Location{}, fmt.Errorf("%w: output %q needs minio://host/bucket", ErrInvalid, s)
		}
		return Location{Kind: KindMinIO, Endpoint: u.Host, Bucket: bucket, Prefix: prefix(rest)}, nil
	default:
		return Location{}, fmt.Errorf("%w: unsupported output scheme %q", ErrInvalid, scheme)
	}
}

func prefix(p string) string {
	if p == "" {
		return ""
	}
	return p + "/"
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return l, nil
}

// Validate checks cfg and reports every problem at once.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(cfg.Input) == "" {
		add("input is required")
	}
	if strings.TrimSpace(cfg.Vocab) == "" {
		add("vocab is required")
	}
	loc, err := ParseLocation(cfg.Output)
	if err != nil {
		errs = append(errs, err)
	}
	if cfg.BatchSize <= 0 {
		add("batch size must be positive, got %d", cfg.BatchSize)
	}

	switch cfg.Encoder {
	case "hash":
	case "tokenizer":
		if strings.TrimSpace(cfg.Tokenizer) == "" {
			add("encoder tokenizer needs a tokenizer file")
		}
	default:
		add("unknown encoder %q", cfg.Encoder)
	}
	if cfg.Dimension <= 0 {
		add("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.DType != "f4" && cfg.DType != "f2" {
		add("dtype must be f4 or f2, got %q", cfg.DType)
	}

	c, err := compress.Parse(cfg.Compress)
	if err != nil {
		add("%v", err)
	} else if c != compress.None && cfg.Output != "" && !loc.Remote() {
		add("compression %q needs a remote output", c)
	}

	if cfg.Resources.MemoryLimitBytes < 0 {
		add("memory limit must not be negative")
	}
	if cfg.Resources.UploadWorkers < 0 {
		add("upload workers must not be negative")
	}
	if cfg.Resources.IOLimitBytesPerSec < 0 {
		add("io limit must not be negative")
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		add("log format must be text or json, got %q", cfg.Logging.Format)
	}

	if loc.Kind == KindMinIO && (cfg.MinIO.AccessKey == "") != (cfg.MinIO.SecretKey == "") {
		add("minio access key and secret key must be set together")
	}

	return errors.Join(errs...)
}
