// Package encoder provides deterministic, model-free encoders.
//
// Both encoders map every raw token id to a fixed unit vector drawn from a
// PCG stream seeded by the id, and pool a line's token vectors into an
// L2-normalised mean. They give the pipeline reproducible output without a
// neural model; their vectors carry no semantics.
//
// Hash tokenizes on Unicode letter and digit runs and hashes each token with
// FNV-1a. Tokenizer delegates tokenization to a HuggingFace tokenizer.json.
package encoder
