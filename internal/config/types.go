// Package config assembles the CLI configuration from defaults, an optional
// JSON file, EMBEDPACK_* environment variables and command-line flags, in
// that order of precedence.
package config

// Config is the effective configuration of one CLI run. JSON uses
// snake_case; unknown fields fail the load.
type Config struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Vocab     string `json:"vocab"`
	BatchSize int    `json:"batch_size"`

	// Encoder is "hash" or "tokenizer". Tokenizer names the tokenizer.json
	// file the tokenizer encoder loads.
	Encoder   string `json:"encoder"`
	Tokenizer string `json:"tokenizer"`
	Dimension int    `json:"dimension"`
	Seed      uint64 `json:"seed"`

	// DType is "f4" or "f2".
	DType string `json:"dtype"`
	// Compress applies to remote outputs only: "none", "zstd" or "lz4".
	Compress string `json:"compress"`

	Resources Resources `json:"resources"`
	Logging   Logging   `json:"logging"`
	S3        S3        `json:"s3"`
	MinIO     MinIO     `json:"minio"`
}

// Resources bounds memory, uploads and IO. Zero means unlimited.
type Resources struct {
	MemoryLimitBytes   int64 `json:"memory_limit_bytes"`
	UploadWorkers      int   `json:"upload_workers"`
	IOLimitBytesPerSec int64 `json:"io_limit_bytes_per_sec"`
}

// Logging selects the log level and handler.
type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// S3 configures s3:// outputs. Credentials come from the default AWS chain.
type S3 struct {
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	PathStyle bool   `json:"path_style"`
}

// MinIO configures minio:// outputs.
type MinIO struct {
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Region       string `json:"region"`
	Secure       bool   `json:"secure"`
	CreateBucket bool   `json:"create_bucket"`
}
