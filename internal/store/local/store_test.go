package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogops/imageingest/internal/ingest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSafeKey(t *testing.T) {
	cases := map[string]string{
		"ABC-123":        "ABC-123",
		"a b/c":          "a_b_c",
		"  weird!!key  ": "weird_key",
		"///":            "_",
		"UPC.0042":       "UPC.0042",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeKey(in), "input %q", in)
	}
}

func TestWriteThenSkip(t *testing.T) {
	s := newTestStore(t)
	img := ingest.NormalizedImage{Data: []byte("jpeg-bytes"), Width: 10, Height: 10}

	outcome, err := s.Write(context.Background(), "SKU-1", img, false)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeWritten, outcome)
	assert.True(t, s.Exists("SKU-1"))

	outcome, err = s.Write(context.Background(), "SKU-1", ingest.NormalizedImage{Data: []byte("other")}, false)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeSkipped, outcome)

	data, err := os.ReadFile(s.Path("SKU-1"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestWriteOverwrite(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Write(context.Background(), "SKU-2", ingest.NormalizedImage{Data: []byte("v1")}, false)
	require.NoError(t, err)

	outcome, err := s.Write(context.Background(), "SKU-2", ingest.NormalizedImage{Data: []byte("v2")}, true)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeOverwritten, outcome)

	data, err := os.ReadFile(s.Path("SKU-2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "SKU-3", ingest.NormalizedImage{Data: []byte("x")}, false)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SKU-3.jpg", entries[0].Name())
}

func TestWriteCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := s.Write(ctx, "SKU-4", ingest.NormalizedImage{Data: []byte("x")}, false)
	assert.Error(t, err)
	assert.Equal(t, ingest.OutcomeFailed, outcome)
	assert.False(t, s.Exists("SKU-4"))
}

func TestNewCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "assets")
	s, err := New(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "K.jpg"), s.Path("K"))
}

func TestNewRejectsUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err := New(filepath.Join(dir, "assets"), nil)
	assert.Error(t, err)
}
