package embedpack

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/embedpack/appendarray"
	"github.com/hupe1980/embedpack/dataset"
	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/hupe1980/embedpack/internal/npy"
	"github.com/hupe1980/embedpack/ledger"
	"github.com/hupe1980/embedpack/manifest"
	"github.com/hupe1980/embedpack/model"
	"github.com/hupe1980/embedpack/stream"
)

// Encoder maps a batch of raw lines to token ids, token embeddings and one
// aggregate embedding per line.
type Encoder interface {
	Encode(ctx context.Context, texts []string) (model.Encoding, error)
	// Dimension is the width of every embedding the encoder produces.
	Dimension() int
}

// Filter keeps the tokens present in a fixed vocabulary.
type Filter interface {
	Filter(ids [][]uint64, embeddings [][][]float32) (model.Filtered, error)
}

// State is the lifecycle state of a Pipeline.
type State int

const (
	// StateOpen is a pipeline that has not run yet.
	StateOpen State = iota
	// StateStreaming is a pipeline consuming batches.
	StateStreaming
	// StateFinalizing is a pipeline closing its arrays after the input ended.
	StateFinalizing
	// StateClosed is a pipeline whose run completed.
	StateClosed
	// StateAborted is a pipeline whose run failed.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result summarizes a completed run.
type Result struct {
	// Documents is the number of non-empty input lines processed.
	Documents int
	// Tokens is the number of tokens that survived the vocabulary filter.
	Tokens int64
	// Batches is the number of encoder calls.
	Batches int
	// Dimension is the embedding width.
	Dimension int
	// Files lists the written files, offsets and manifest last.
	Files []string
	// Manifest is the run manifest, nil with WithoutManifest.
	Manifest *manifest.Manifest
	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Pipeline streams lines through an encoder and a vocabulary filter into
// four append-only arrays in one output directory.
//
// A Pipeline runs exactly once.
type Pipeline struct {
	out    string
	enc    Encoder
	filter Filter
	dim    int
	opts   options
	logger *Logger

	mu    sync.Mutex
	state State

	ledger *ledger.Ledger
}

// New creates a pipeline writing into the directory out.
func New(out string, enc Encoder, filter Filter, optFns ...Option) (*Pipeline, error) {
	if enc == nil || filter == nil {
		return nil, ErrNilCollaborator
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.batchSize)
	}
	if opts.dtype != DTypeFloat32 && opts.dtype != DTypeFloat16 {
		return nil, fmt.Errorf("%w: embedding dtype %q", npy.ErrUnsupported, opts.dtype)
	}
	dim := enc.Dimension()
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	return &Pipeline{
		out:    out,
		enc:    enc,
		filter: filter,
		dim:    dim,
		opts:   opts,
		logger: opts.logger.WithOutput(out),
		ledger: ledger.New(),
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// targets holds the three arrays that grow while streaming.
type targets struct {
	tokens   *appendarray.Array
	tokenEmb *appendarray.Array
	textEmb  *appendarray.Array
}

func (t *targets) all() []*appendarray.Array {
	return []*appendarray.Array{t.tokenEmb, t.textEmb, t.tokens}
}

func (t *targets) abort() {
	for _, a := range t.all() {
		if a != nil {
			_ = a.Abort()
		}
	}
}

func (t *targets) close() error {
	for _, a := range t.all() {
		if err := a.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) path(name string) string {
	return filepath.Join(p.out, name)
}

// open clears completion markers left by an earlier run and creates the
// three streaming arrays.
func (p *Pipeline) open(ctx context.Context) (*targets, error) {
	fsys := p.opts.fsys
	if err := fsys.MkdirAll(p.out, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	for _, name := range []string{dataset.OffsetsFile, manifest.FileName} {
		if err := fs.RemoveIfExists(fsys, p.path(name)); err != nil {
			return nil, fmt.Errorf("remove stale %s: %w", name, err)
		}
	}

	common := []appendarray.Option{
		appendarray.WithBufferSize(p.opts.bufferSize),
		appendarray.WithResourceController(ctx, p.opts.resource),
	}
	create := func(name string, extra ...appendarray.Option) (*appendarray.Array, error) {
		a, err := appendarray.Create(fsys, p.path(name), append(extra, common...)...)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		return a, nil
	}

	t := &targets{}
	var err error
	if t.tokenEmb, err = create(dataset.TokenEmbeddingsFile, appendarray.WithWidth(p.dim), appendarray.WithDType(p.opts.dtype)); err != nil {
		return nil, err
	}
	if t.textEmb, err = create(dataset.TextEmbeddingsFile, appendarray.WithWidth(p.dim), appendarray.WithDType(p.opts.dtype)); err != nil {
		t.abort()
		return nil, err
	}
	if t.tokens, err = create(dataset.TokensFile, appendarray.WithDType(npy.Int64)); err != nil {
		t.abort()
		return nil, err
	}
	return t, nil
}

// Run consumes lines until exhausted and persists the arrays. Any error
// aborts the run: the partially written arrays are left in place and the
// offsets file is not written.
func (p *Pipeline) Run(ctx context.Context, lines iter.Seq2[string, error]) (Result, error) {
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return Result{}, ErrPipelineUsed
	}
	p.state = StateStreaming
	p.mu.Unlock()

	start := time.Now()
	res, err := p.run(ctx, lines, start)
	if err != nil {
		err = translateError(err)
		p.setState(StateAborted)
		p.logger.LogAbort(ctx, p.ledger.Documents(), err)
		return Result{}, err
	}
	p.setState(StateClosed)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, lines iter.Seq2[string, error], start time.Time) (_ Result, err error) {
	t, err := p.open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err != nil {
			t.abort()
		}
	}()

	batches, err := stream.Batch(lines, p.opts.batchSize)
	if err != nil {
		return Result{}, err
	}

	n := 0
	for batch, rerr := range batches {
		if rerr != nil {
			return Result{}, fmt.Errorf("read input: %w", rerr)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := p.batch(ctx, t, n, batch); err != nil {
			return Result{}, err
		}
		n++
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	p.setState(StateFinalizing)
	return p.finalize(ctx, t, n, start)
}

// batchBytes estimates the memory an encoded batch holds.
func batchBytes(enc model.Encoding, dim int) int64 {
	ids := int64(enc.NumTokens()) * 8
	vecs := int64(enc.NumTokens()+enc.Len()) * int64(dim) * 4
	return ids + vecs
}

func (p *Pipeline) batch(ctx context.Context, t *targets, n int, lines []string) (err error) {
	start := time.Now()
	surviving := 0
	defer func() {
		p.opts.metricsCollector.RecordBatch(len(lines), surviving, time.Since(start), err)
	}()

	enc, err := p.enc.Encode(ctx, lines)
	if err != nil {
		return fmt.Errorf("encode batch %d: %w", n, err)
	}
	if err := enc.Validate(len(lines)); err != nil {
		return fmt.Errorf("encode batch %d: %w", n, err)
	}

	mem := batchBytes(enc, p.dim)
	if err := p.opts.resource.AcquireMemory(mem); err != nil {
		return fmt.Errorf("batch %d: %w", n, err)
	}
	defer p.opts.resource.ReleaseMemory(mem)

	f, err := p.filter.Filter(enc.TokenIDs, enc.TokenEmbeddings)
	if err != nil {
		return fmt.Errorf("filter batch %d: %w", n, err)
	}
	if err := f.Validate(len(lines)); err != nil {
		return fmt.Errorf("filter batch %d: %w", n, err)
	}

	if err := t.tokens.AppendInt64(f.VocabIDs); err != nil {
		return fmt.Errorf("append batch %d: %w", n, err)
	}
	if err := t.tokenEmb.AppendFloat32(f.Embeddings); err != nil {
		return fmt.Errorf("append batch %d: %w", n, err)
	}
	if err := t.textEmb.AppendFloat32(enc.TextEmbeddings); err != nil {
		return fmt.Errorf("append batch %d: %w", n, err)
	}
	if err := p.ledger.Record(f.Counts); err != nil {
		return fmt.Errorf("record batch %d: %w", n, err)
	}

	surviving = f.Total()
	p.logger.LogBatch(ctx, n, len(lines), surviving, p.ledger.Documents(), p.ledger.Total())
	return nil
}

// finalize closes the streaming arrays, then writes the offsets and the
// manifest. Offsets only appear once every token row is durable.
func (p *Pipeline) finalize(ctx context.Context, t *targets, batches int, start time.Time) (_ Result, err error) {
	flushStart := time.Now()
	docs := p.ledger.Documents()
	total := p.ledger.Total()
	defer func() {
		p.opts.metricsCollector.RecordFlush(docs, total, time.Since(flushStart), err)
	}()

	offsets, err := p.ledger.Finalize()
	if err != nil {
		return Result{}, err
	}
	if t.tokens.Rows() != total || t.tokenEmb.Rows() != total || t.textEmb.Rows() != int64(docs) {
		return Result{}, fmt.Errorf("%w: ledger %d tokens / %d documents, arrays %d tokens / %d token embeddings / %d text embeddings",
			ErrLedgerMismatch, total, docs, t.tokens.Rows(), t.tokenEmb.Rows(), t.textEmb.Rows())
	}

	if err := t.close(); err != nil {
		return Result{}, fmt.Errorf("close arrays: %w", err)
	}

	fsys := p.opts.fsys
	offsetsPath := p.path(dataset.OffsetsFile)
	if err := appendarray.WriteInt64(fsys, offsetsPath, offsets); err != nil {
		return Result{}, fmt.Errorf("write offsets: %w", err)
	}

	res := Result{
		Documents: docs,
		Tokens:    total,
		Batches:   batches,
		Dimension: p.dim,
	}
	for _, name := range dataset.Files {
		res.Files = append(res.Files, p.path(name))
	}

	if p.opts.writeManifest {
		m, err := p.manifest(docs, total)
		if err == nil {
			err = manifest.Write(fsys, p.out, m)
		}
		if err != nil {
			// Without a manifest the run is incomplete; drop the completion marker.
			_ = fs.RemoveIfExists(fsys, offsetsPath)
			return Result{}, fmt.Errorf("write manifest: %w", err)
		}
		res.Manifest = m
		res.Files = append(res.Files, p.path(manifest.FileName))
	}

	res.Elapsed = time.Since(start)
	p.logger.LogFinalize(ctx, docs, total, batches, res.Elapsed)
	return res, nil
}

func (p *Pipeline) manifest(docs int, total int64) (*manifest.Manifest, error) {
	m := &manifest.Manifest{
		DType:     p.opts.dtype,
		Dimension: p.dim,
		BatchSize: p.opts.batchSize,
		Documents: int64(docs),
		Tokens:    total,
	}
	for _, name := range dataset.Files {
		fi, err := manifest.Describe(p.opts.fsys, p.path(name))
		if err != nil {
			return nil, err
		}
		m.Files = append(m.Files, fi)
	}
	return m, nil
}

// IsDimensionMismatch reports whether err is caused by an embedding of the
// wrong width.
func IsDimensionMismatch(err error) bool {
	var dm *ErrDimensionMismatch
	return errors.As(err, &dm) || appendarray.IsDimensionMismatch(err)
}
