package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/embedpack/internal/fs"
)

// EnvPrefix prefixes every environment variable EnvOverlay reads.
const EnvPrefix = "EMBEDPACK_"

// Defaults returns the base configuration. Input, output and vocabulary have
// no defaults.
func Defaults() Config {
	return Config{
		BatchSize: 32,
		Encoder:   "hash",
		Dimension: 384,
		DType:     "f4",
		Compress:  "none",
		Resources: Resources{
			UploadWorkers: 4,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a JSON config file through fsys.
func Load(fsys fs.FileSystem, path string) (Config, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(buf.Bytes())
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw JSON, rejecting unknown fields.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge returns base with every non-zero field of over applied. A false
// boolean never overrides.
func Merge(base, over Config) Config {
	out := base
	setString(&out.Input, over.Input)
	setString(&out.Output, over.Output)
	setString(&out.Vocab, over.Vocab)
	if over.BatchSize != 0 {
		out.BatchSize = over.BatchSize
	}
	setString(&out.Encoder, over.Encoder)
	setString(&out.Tokenizer, over.Tokenizer)
	if over.Dimension != 0 {
		out.Dimension = over.Dimension
	}
	if over.Seed != 0 {
		out.Seed = over.Seed
	}
	setString(&out.DType, over.DType)
	setString(&out.Compress, over.Compress)

	if over.Resources.MemoryLimitBytes != 0 {
		out.Resources.MemoryLimitBytes = over.Resources.MemoryLimitBytes
	}
	if over.Resources.UploadWorkers != 0 {
		out.Resources.UploadWorkers = over.Resources.UploadWorkers
	}
	if over.Resources.IOLimitBytesPerSec != 0 {
		out.Resources.IOLimitBytesPerSec = over.Resources.IOLimitBytesPerSec
	}

	setString(&out.Logging.Level, over.Logging.Level)
	setString(&out.Logging.Format, over.Logging.Format)

	setString(&out.S3.Region, over.S3.Region)
	setString(&out.S3.Endpoint, over.S3.Endpoint)
	out.S3.PathStyle = out.S3.PathStyle || over.S3.PathStyle

	setString(&out.MinIO.AccessKey, over.MinIO.AccessKey)
	setString(&out.MinIO.SecretKey, over.MinIO.SecretKey)
	setString(&out.MinIO.Region, over.MinIO.Region)
	out.MinIO.Secure = out.MinIO.Secure || over.MinIO.Secure
	out.MinIO.CreateBucket = out.MinIO.CreateBucket || over.MinIO.CreateBucket
	return out
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// EnvOverlay builds an overlay from EMBEDPACK_* variables in environ.
// Unknown keys are ignored; malformed numbers and booleans are errors.
func EnvOverlay(environ []string) (Config, error) {
	var (
		over Config
		errs []error
	)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		key = strings.TrimPrefix(key, EnvPrefix)
		val = strings.TrimSpace(val)

		var err error
		switch key {
		case "INPUT":
			over.Input = val
		case "OUTPUT":
			over.Output = val
		case "VOCAB":
			over.Vocab = val
		case "BATCH_SIZE":
			over.BatchSize, err = strconv.Atoi(val)
		case "ENCODER":
			over.Encoder = val
		case "TOKENIZER":
			over.Tokenizer = val
		case "DIMENSION":
			over.Dimension, err = strconv.Atoi(val)
		case "SEED":
			over.Seed, err = strconv.ParseUint(val, 10, 64)
		case "DTYPE":
			over.DType = val
		case "COMPRESS":
			over.Compress = val
		case "MEMORY_LIMIT_BYTES":
			over.Resources.MemoryLimitBytes, err = strconv.ParseInt(val, 10, 64)
		case "UPLOAD_WORKERS":
			over.Resources.UploadWorkers, err = strconv.Atoi(val)
		case "IO_LIMIT_BYTES_PER_SEC":
			over.Resources.IOLimitBytesPerSec, err = strconv.ParseInt(val, 10, 64)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_FORMAT":
			over.Logging.Format = val
		case "S3_REGION":
			over.S3.Region = val
		case "S3_ENDPOINT":
			over.S3.Endpoint = val
		case "S3_PATH_STYLE":
			over.S3.PathStyle, err = strconv.ParseBool(val)
		case "MINIO_ACCESS_KEY":
			over.MinIO.AccessKey = val
		case "MINIO_SECRET_KEY":
			over.MinIO.SecretKey = val
		case "MINIO_REGION":
			over.MinIO.Region = val
		case "MINIO_SECURE":
			over.MinIO.Secure, err = strconv.ParseBool(val)
		case "MINIO_CREATE_BUCKET":
			over.MinIO.CreateBucket, err = strconv.ParseBool(val)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return over, nil
}

// Flags binds the encode flags to a FlagSet. After parsing, Apply layers the
// flags given on the command line over a base configuration.
type Flags struct {
	fset       *flag.FlagSet
	cfg        Config
	configPath string
}

// BindFlags registers the encode flags on fset.
func BindFlags(fset *flag.FlagSet) *Flags {
	f := &Flags{fset: fset}
	c := &f.cfg
	fset.StringVar(&f.configPath, "config", "", "JSON config file")
	fset.StringVar(&c.Input, "input", "", "input text file, one document per line")
	fset.StringVar(&c.Output, "output", "", "output directory, s3://bucket/prefix or minio://host/bucket/prefix")
	fset.StringVar(&c.Vocab, "vocab", "", "vocabulary file, one word per line")
	fset.IntVar(&c.BatchSize, "batch-size", 0, "lines per encoder batch (default 32)")
	fset.StringVar(&c.Encoder, "encoder", "", "encoder: hash or tokenizer (default hash)")
	fset.StringVar(&c.Tokenizer, "tokenizer", "", "tokenizer.json for -encoder tokenizer")
	fset.IntVar(&c.Dimension, "dim", 0, "embedding dimension (default 384)")
	fset.Uint64Var(&c.Seed, "seed", 0, "embedding table seed")
	fset.StringVar(&c.DType, "dtype", "", "embedding storage: f4 or f2 (default f4)")
	fset.StringVar(&c.Compress, "compress", "", "remote upload compression: none, zstd or lz4")
	fset.Int64Var(&c.Resources.MemoryLimitBytes, "memory-limit", 0, "per-batch memory limit in bytes")
	fset.IntVar(&c.Resources.UploadWorkers, "upload-workers", 0, "concurrent uploads (default 4)")
	fset.Int64Var(&c.Resources.IOLimitBytesPerSec, "io-limit", 0, "write and upload limit in bytes per second")
	fset.StringVar(&c.Logging.Level, "log-level", "", "debug, info, warn or error (default info)")
	fset.StringVar(&c.Logging.Format, "log-format", "", "text or json (default text)")
	return f
}

// ConfigPath returns the -config flag value.
func (f *Flags) ConfigPath() string { return f.configPath }

// Apply returns base with every flag that was set on the command line
// applied, explicit zero values included.
func (f *Flags) Apply(base Config) Config {
	set := map[string]bool{}
	f.fset.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	over := base
	pick := map[string]func(){
		"input":          func() { over.Input = f.cfg.Input },
		"output":         func() { over.Output = f.cfg.Output },
		"vocab":          func() { over.Vocab = f.cfg.Vocab },
		"batch-size":     func() { over.BatchSize = f.cfg.BatchSize },
		"encoder":        func() { over.Encoder = f.cfg.Encoder },
		"tokenizer":      func() { over.Tokenizer = f.cfg.Tokenizer },
		"dim":            func() { over.Dimension = f.cfg.Dimension },
		"seed":           func() { over.Seed = f.cfg.Seed },
		"dtype":          func() { over.DType = f.cfg.DType },
		"compress":       func() { over.Compress = f.cfg.Compress },
		"memory-limit":   func() { over.Resources.MemoryLimitBytes = f.cfg.Resources.MemoryLimitBytes },
		"upload-workers": func() { over.Resources.UploadWorkers = f.cfg.Resources.UploadWorkers },
		"io-limit":       func() { over.Resources.IOLimitBytesPerSec = f.cfg.Resources.IOLimitBytesPerSec },
		"log-level":      func() { over.Logging.Level = f.cfg.Logging.Level },
		"log-format":     func() { over.Logging.Format = f.cfg.Logging.Format },
	}
	for name, fn := range pick {
		if set[name] {
			fn()
		}
	}
	return over
}
