// Command embedpack encodes a text corpus into token and document embedding
// arrays and verifies finished runs.
//
//	embedpack encode -input corpus.txt -vocab vocab.txt -output ./out
//	embedpack encode -input corpus.txt -vocab vocab.txt -output s3://bucket/runs/1 -compress zstd
//	embedpack verify ./out
//
// Exit codes: 0 success, 2 usage or configuration error, 1 run failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/embedpack"
	"github.com/hupe1980/embedpack/blobstore"
	"github.com/hupe1980/embedpack/blobstore/minio"
	"github.com/hupe1980/embedpack/blobstore/s3"
	"github.com/hupe1980/embedpack/dataset"
	"github.com/hupe1980/embedpack/encoder"
	"github.com/hupe1980/embedpack/internal/compress"
	"github.com/hupe1980/embedpack/internal/config"
	"github.com/hupe1980/embedpack/internal/resource"
	"github.com/hupe1980/embedpack/publish"
	"github.com/hupe1980/embedpack/stream"
	"github.com/hupe1980/embedpack/vocab"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Environ(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fprintf(w, "usage:\n  embedpack encode -input FILE -vocab FILE -output DIR|URL [flags]\n  embedpack verify DIR|URL\n")
}

func run(ctx context.Context, args, environ []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "encode":
		return encode(ctx, args[1:], environ, stdout, stderr)
	case "verify":
		return verify(ctx, args[1:], environ, stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(flags *config.Flags, environ []string) (config.Config, error) {
	cfg := config.Defaults()

	path := flags.ConfigPath()
	if path == "" {
		path = lookupEnv(environ, config.EnvPrefix+"CONFIG")
	}
	if path != "" {
		file, err := config.Load(nil, path)
		if err != nil {
			return cfg, err
		}
		cfg = config.Merge(cfg, file)
	}

	env, err := config.EnvOverlay(environ)
	if err != nil {
		return cfg, err
	}
	cfg = config.Merge(cfg, env)
	cfg = flags.Apply(cfg)
	return cfg, config.Validate(cfg)
}

func lookupEnv(environ []string, key string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(environ[i], key+"="); ok {
			return v
		}
	}
	return ""
}

func newLogger(cfg config.Config, w io.Writer) (*embedpack.Logger, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return embedpack.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return embedpack.NewLogger(slog.NewTextHandler(w, opts)), nil
}

type resolvingEncoder interface {
	embedpack.Encoder
	vocab.Resolver
}

func newEncoder(cfg config.Config) (resolvingEncoder, error) {
	opts := []encoder.Option{encoder.WithDimension(cfg.Dimension), encoder.WithSeed(cfg.Seed)}
	if cfg.Encoder == "tokenizer" {
		return encoder.NewTokenizer(cfg.Tokenizer, opts...)
	}
	return encoder.NewHash(opts...)
}

func openStore(ctx context.Context, loc config.Location, cfg config.Config) (blobstore.BlobStore, error) {
	switch loc.Kind {
	case config.KindS3:
		var opts []s3.Option
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.S3.Endpoint))
		}
		if cfg.S3.PathStyle {
			opts = append(opts, s3.WithPathStyle())
		}
		return s3.New(ctx, loc.Bucket, loc.Prefix, opts...)
	case config.KindMinIO:
		return minio.Dial(ctx, minio.Config{
			Endpoint:     loc.Endpoint,
			AccessKey:    cfg.MinIO.AccessKey,
			SecretKey:    cfg.MinIO.SecretKey,
			Region:       cfg.MinIO.Region,
			Secure:       cfg.MinIO.Secure,
			Bucket:       loc.Bucket,
			Prefix:       loc.Prefix,
			CreateBucket: cfg.MinIO.CreateBucket,
		})
	default:
		return blobstore.NewLocalStore(loc.Dir), nil
	}
}

func encode(ctx context.Context, args, environ []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("encode", flag.ContinueOnError)
	fset.SetOutput(stderr)
	flags := config.BindFlags(fset)
	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fset.NArg() > 0 {
		fprintf(stderr, "unexpected arguments: %v\n", fset.Args())
		return exitUsage
	}

	cfg, err := loadConfig(flags, environ)
	if err != nil {
		fprintf(stderr, "configuration: %v\n", err)
		return exitUsage
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fprintf(stderr, "configuration: %v\n", err)
		return exitUsage
	}
	loc, _ := config.ParseLocation(cfg.Output)
	compression, _ := compress.Parse(cfg.Compress)

	// Inputs are checked before the output directory is touched, so a bad
	// path never clobbers a previous run.
	if err := checkInput(cfg.Input); err != nil {
		fprintf(stderr, "input: %v\n", err)
		return exitUsage
	}
	v, err := vocab.LoadFile(nil, cfg.Vocab)
	if err != nil {
		fprintf(stderr, "vocabulary: %v\n", err)
		return exitUsage
	}
	enc, err := newEncoder(cfg)
	if err != nil {
		fprintf(stderr, "encoder: %v\n", err)
		return exitFailure
	}
	filter := vocab.NewFilter(v, enc)
	if n := len(filter.Unresolved()); n > 0 {
		logger.WarnContext(ctx, "vocabulary words without a single token", "count", n, "first", filter.Unresolved()[0])
	}
	if n := len(filter.Shadowed()); n > 0 {
		logger.WarnContext(ctx, "vocabulary words sharing a token", "count", n, "first", filter.Shadowed()[0])
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     cfg.Resources.MemoryLimitBytes,
		MaxBackgroundWorkers: int64(cfg.Resources.UploadWorkers),
		IOLimitBytesPerSec:   cfg.Resources.IOLimitBytesPerSec,
	})

	// Arrays are staged locally; a remote output is published afterwards.
	dir := loc.Dir
	var store blobstore.BlobStore
	if loc.Remote() {
		if store, err = openStore(ctx, loc, cfg); err != nil {
			fprintf(stderr, "output %s: %v\n", loc, err)
			return exitFailure
		}
		if dir, err = os.MkdirTemp("", "embedpack-*"); err != nil {
			fprintf(stderr, "staging directory: %v\n", err)
			return exitFailure
		}
		defer os.RemoveAll(dir)
	}

	p, err := embedpack.New(dir, enc, filter,
		embedpack.WithBatchSize(cfg.BatchSize),
		embedpack.WithDType(dtype(cfg.DType)),
		embedpack.WithLogger(logger),
		embedpack.WithResourceController(rc),
	)
	if err != nil {
		fprintf(stderr, "pipeline: %v\n", err)
		return exitUsage
	}

	res, err := p.Run(ctx, stream.OpenLines(nil, cfg.Input))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fprintf(stderr, "encode: %v\n", err)
		}
		return exitFailure
	}

	if store != nil {
		pub := publish.New(store,
			publish.WithResourceController(rc),
			publish.WithCompression(compression),
			publish.WithProgress(func(name string, n int64, d time.Duration) {
				logger.LogPublish(ctx, name, n, d, nil)
			}),
		)
		if _, err := pub.Publish(ctx, dir, res.Manifest); err != nil {
			logger.LogPublish(ctx, loc.String(), 0, 0, err)
			fprintf(stderr, "publish: %v\n", err)
			return exitFailure
		}
	}

	fprintf(stdout, "%d\n", res.Tokens)
	return exitOK
}

func checkInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func dtype(s string) embedpack.DType {
	if s == "f2" {
		return embedpack.DTypeFloat16
	}
	return embedpack.DTypeFloat32
}

func verify(ctx context.Context, args, environ []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("verify", flag.ContinueOnError)
	fset.SetOutput(stderr)
	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fset.NArg() != 1 {
		usage(stderr)
		return exitUsage
	}
	loc, err := config.ParseLocation(fset.Arg(0))
	if err != nil {
		fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	cfg := config.Defaults()
	env, err := config.EnvOverlay(environ)
	if err != nil {
		fprintf(stderr, "configuration: %v\n", err)
		return exitUsage
	}
	cfg = config.Merge(cfg, env)

	store, err := openStore(ctx, loc, cfg)
	if err != nil {
		fprintf(stderr, "open %s: %v\n", loc, err)
		return exitFailure
	}
	d, err := dataset.Open(ctx, store)
	if err != nil {
		fprintf(stderr, "open %s: %v\n", loc, err)
		return exitFailure
	}
	defer d.Close()

	if err := d.Verify(); err != nil {
		fprintf(stderr, "verify %s: %v\n", loc, err)
		return exitFailure
	}
	fprintf(stdout, "ok documents=%d tokens=%d dimension=%d dtype=%s\n",
		d.Documents(), d.NumTokens(), d.Dimension(), d.DType())
	return exitOK
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
