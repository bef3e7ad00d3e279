package fileStore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"  my report (final).pdf ", "myreportfinal.pdf"},
		{"../../etc/passwd", "passwd"},
		{"naïve_notes.txt", "naïve_notes.txt"},
		{"...", "file"},
		{"$$$", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanFileName(tt.in), "input %q", tt.in)
	}
}

func TestValidateUpload(t *testing.T) {
	s := NewFileStore(t.TempDir())

	assert.NoError(t, s.ValidateUpload("text/plain; charset=utf-8", 10))
	assert.NoError(t, s.ValidateUpload("application/pdf", 10))

	err := s.ValidateUpload("image/png", 10)
	assert.True(t, errors.Is(err, ErrFileTypeNotSupported))
	assert.True(t, errors.Is(err, ragModel.ErrInvalidAsset))

	err = s.ValidateUpload("text/plain", s.maxBytes+1)
	assert.True(t, errors.Is(err, ErrFileSizeExceeded))
}

func TestSaveAndRead(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	ctx := context.Background()

	name, size, err := s.Save(ctx, "p1", "my notes.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.True(t, strings.HasSuffix(name, "_mynotes.txt"), name)
	assert.FileExists(t, filepath.Join(root, "p1", name))

	other, _, err := s.Save(ctx, "p1", "my notes.txt", strings.NewReader("again"))
	require.NoError(t, err)
	assert.NotEqual(t, name, other, "every upload gets a unique path")

	text, err := s.Read(ctx, ragModel.Asset{ProjectId: "p1", AssetName: name})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestSave_RejectsOversizeAndCleansUp(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	s.maxBytes = 4

	_, _, err := s.Save(context.Background(), "p1", "big.txt", bytes.NewReader([]byte("too large")))
	assert.True(t, errors.Is(err, ErrFileSizeExceeded))

	entries, err := os.ReadDir(filepath.Join(root, "p1"))
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")
}

func TestSave_InvalidProject(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, _, err := s.Save(context.Background(), "../x", "a.txt", strings.NewReader("a"))
	assert.True(t, errors.Is(err, ragModel.ErrInvalidProjectID))
}

func TestRead_Missing(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Read(context.Background(), ragModel.Asset{ProjectId: "p1", AssetName: "nope.txt"})
	assert.True(t, errors.Is(err, ragModel.ErrSourceNotFound))
}
