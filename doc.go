// Package embedpack converts a corpus of text lines into token-level and
// document-level embedding arrays, filtered against a fixed vocabulary and
// written incrementally so corpora larger than memory can be processed.
//
// # Quick Start
//
//	enc, _ := encoder.NewHash(encoder.WithDimension(384))
//	v, _ := vocab.LoadFile(nil, "vocab.txt")
//	p, _ := embedpack.New("./out", enc, vocab.NewFilter(v, enc),
//	    embedpack.WithBatchSize(64))
//	res, err := p.Run(ctx, stream.OpenLines(nil, "corpus.txt"))
//	fmt.Println(res.Tokens)
//
// # Output
//
// A run writes five files into its output directory:
//
//	token_embeddings.npy  (tokens, d)     <f4 or <f2
//	text_embeddings.npy   (documents, d)  <f4 or <f2
//	tokens.npy            (tokens,)       <i8 vocabulary ids, 1-based
//	offsets.npy           (documents+1,)  <i8
//	manifest.json         shapes, sizes and CRC32-C of the four arrays
//
// Document i owns token rows offsets[i] to offsets[i+1]. Documents are the
// non-empty input lines in input order.
//
// # Failure Model
//
// Every error aborts the run. The streaming arrays are left on disk as they
// were, but offsets.npy and manifest.json are only written after every other
// array has been closed and synced, so their presence marks a complete run.
//
// # Reading Back
//
// Package dataset opens a finished run from a directory or any
// blobstore.BlobStore and verifies it:
//
//	d, _ := dataset.OpenDir(ctx, "./out")
//	defer d.Close()
//	if err := d.Verify(); err != nil { ... }
//	toks, _ := d.Tokens(0)
//
// # Publishing
//
// Package publish uploads a finished run to S3 or MinIO, optionally
// compressing each array with zstd or LZ4.
package embedpack
