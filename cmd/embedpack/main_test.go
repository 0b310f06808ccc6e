package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T) (corpus, vocab string) {
	t.Helper()
	dir := t.TempDir()
	corpus = filepath.Join(dir, "corpus.txt")
	vocab = filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(corpus, []byte("the cat\n\na dog\nnothing here\n"), 0o644))
	require.NoError(t, os.WriteFile(vocab, []byte("# animals\ncat\ndog\n"), 0o644))
	return corpus, vocab
}

func runCLI(t *testing.T, environ []string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, environ, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestEncodeAndVerify(t *testing.T) {
	corpus, vocab := writeInputs(t)
	out := filepath.Join(t.TempDir(), "run")

	code, stdout, stderr := runCLI(t, nil, "encode",
		"-input", corpus, "-vocab", vocab, "-output", out, "-dim", "16", "-batch-size", "2")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "2\n", stdout)

	for _, name := range []string{"token_embeddings.npy", "text_embeddings.npy", "tokens.npy", "offsets.npy", "manifest.json"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	code, stdout, stderr = runCLI(t, nil, "verify", out)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "ok documents=3 tokens=2 dimension=16 dtype=<f4\n", stdout)
}

func TestEncode_EnvAndConfigFile(t *testing.T) {
	corpus, vocab := writeInputs(t)
	out := filepath.Join(t.TempDir(), "run")
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"dimension": 8, "dtype": "f2", "logging": {"format": "json"}}`), 0o644))

	env := []string{
		"EMBEDPACK_CONFIG=" + cfgPath,
		"EMBEDPACK_INPUT=" + corpus,
		"EMBEDPACK_VOCAB=" + vocab,
		"EMBEDPACK_OUTPUT=" + out,
	}
	code, stdout, stderr := runCLI(t, env, "encode")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "2\n", stdout)

	code, stdout, _ = runCLI(t, nil, "verify", out)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "dimension=8 dtype=<f2")
}

func TestExitCodes(t *testing.T) {
	corpus, vocab := writeInputs(t)
	out := t.TempDir()

	tests := []struct {
		name string
		env  []string
		args []string
		want int
		msg  string
	}{
		{"no command", nil, nil, exitUsage, "usage"},
		{"unknown command", nil, []string{"decode"}, exitUsage, "unknown command"},
		{"help", nil, []string{"help"}, exitOK, ""},
		{"unknown flag", nil, []string{"encode", "-bogus"}, exitUsage, "bogus"},
		{"missing input", nil, []string{"encode", "-vocab", vocab, "-output", out}, exitUsage, "input is required"},
		{"bad batch size", nil, []string{"encode", "-input", corpus, "-vocab", vocab, "-output", out, "-batch-size", "0"}, exitUsage, "batch size"},
		{"bad env", []string{"EMBEDPACK_DIMENSION=wide"}, []string{"encode", "-input", corpus, "-vocab", vocab, "-output", out}, exitUsage, "EMBEDPACK_DIMENSION"},
		{"input not found", nil, []string{"encode", "-input", filepath.Join(out, "missing.txt"), "-vocab", vocab, "-output", out}, exitUsage, "input"},
		{"vocab not found", nil, []string{"encode", "-input", corpus, "-vocab", filepath.Join(out, "missing.txt"), "-output", out}, exitUsage, "vocabulary"},
		{"input is a directory", nil, []string{"encode", "-input", out, "-vocab", vocab, "-output", out}, exitUsage, "directory"},
		{"verify without dir", nil, []string{"verify"}, exitUsage, "usage"},
		{"verify empty dir", nil, []string{"verify", t.TempDir()}, exitFailure, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.env, tt.args...)
			assert.Equal(t, tt.want, code, stderr)
			if tt.msg != "" {
				assert.True(t, strings.Contains(stderr, tt.msg), stderr)
			}
		})
	}
}

func TestEncode_BadInputKeepsPreviousRun(t *testing.T) {
	corpus, vocab := writeInputs(t)
	out := t.TempDir()
	code, _, stderr := runCLI(t, nil, "encode", "-input", corpus, "-vocab", vocab, "-output", out, "-dim", "4")
	require.Equal(t, exitOK, code, stderr)

	before := map[string][]byte{}
	for _, name := range []string{"tokens.npy", "offsets.npy", "manifest.json"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		before[name] = data
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing input", []string{"-input", filepath.Join(out, "typo.txt"), "-vocab", vocab}},
		{"missing vocabulary", []string{"-input", corpus, "-vocab", filepath.Join(out, "typo.txt")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"encode", "-output", out, "-dim", "4"}, tt.args...)
			code, _, _ := runCLI(t, nil, args...)
			assert.Equal(t, exitUsage, code)

			for name, want := range before {
				got, err := os.ReadFile(filepath.Join(out, name))
				require.NoError(t, err)
				assert.Equal(t, want, got, name)
			}
		})
	}

	code, _, stderr = runCLI(t, nil, "verify", out)
	assert.Equal(t, exitOK, code, stderr)
}

func TestVerify_Corrupt(t *testing.T) {
	corpus, vocab := writeInputs(t)
	out := t.TempDir()
	code, _, stderr := runCLI(t, nil, "encode", "-input", corpus, "-vocab", vocab, "-output", out, "-dim", "4")
	require.Equal(t, exitOK, code, stderr)

	path := filepath.Join(out, "tokens.npy")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	code, _, stderr = runCLI(t, nil, "verify", out)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "verify")
}
