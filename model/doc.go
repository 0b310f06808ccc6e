// Package model defines the batch-level data exchanged between the encoder,
// the vocabulary filter and the pipeline driver.
//
// # Types
//
//   - Encoding: encoder output for one batch (per-line token ids, per-token
//     embeddings, one aggregate embedding per line)
//   - Filtered: filter output for one batch (per-line surviving counts and
//     the flattened surviving vocabulary ids and embeddings)
//
// Both types validate their own shape so a misbehaving collaborator is
// caught before anything reaches disk.
package model
