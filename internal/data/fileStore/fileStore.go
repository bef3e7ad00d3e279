package fileStore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/akolanti/GoRAG/internal/config"
	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/akolanti/GoRAG/pkg/logger_i"
	"github.com/google/uuid"
)

var (
	ErrFileTypeNotSupported = errors.New("file type not supported")
	ErrFileSizeExceeded     = errors.New("file size exceeded")
)

var logger = logger_i.NewLogger("fileStore")

// Store keeps uploaded files under root/<projectId>/<randomKey>_<cleanName>.
type Store struct {
	root       string
	maxBytes   int64
	allowTypes []string
}

var _ ragModel.ContentSource = (*Store)(nil)

func NewFileStore(root string) *Store {
	return &Store{
		root:       root,
		maxBytes:   int64(config.FileMaxSizeMB) * 1024 * 1024,
		allowTypes: config.AllowedFileTypes,
	}
}

// ValidateUpload checks the declared content type and size before anything touches disk.
func (s *Store) ValidateUpload(contentType string, size int64) error {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !slices.Contains(s.allowTypes, strings.TrimSpace(mediaType)) {
		return ragModel.Wrap(ragModel.ErrInvalidAsset, "validate upload", fmt.Errorf("%w: %s", ErrFileTypeNotSupported, contentType))
	}
	if size > s.maxBytes {
		return ragModel.Wrap(ragModel.ErrInvalidAsset, "validate upload", fmt.Errorf("%w: %d bytes", ErrFileSizeExceeded, size))
	}
	return nil
}

// Save writes r to a fresh unique path in the project directory and returns the stored asset name
// and the number of bytes written.
func (s *Store) Save(ctx context.Context, projectId, originalName string, r io.Reader) (string, int64, error) {
	const op = "save upload"
	if err := ragModel.ValidateProjectId(projectId); err != nil {
		return "", 0, err
	}
	dir := filepath.Join(s.root, projectId)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	cleaned := CleanFileName(originalName)
	var f *os.File
	var name string
	for {
		name = randomKey() + "_" + cleaned
		var err error
		f, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		break
	}

	// one extra byte tells us the limit was crossed
	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ragModel.Wrap(ragModel.ErrInvalidAsset, op, ErrFileSizeExceeded)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		if ragModel.KindOf(err) == nil {
			err = ragModel.Wrap(ragModel.ErrPersistence, op, err)
		}
		return "", 0, err
	}

	logger.FromContext(ctx).Info("file stored", "projectId", projectId, "asset", name, "bytes", written)
	return name, written, nil
}

func (s *Store) Path(projectId, assetName string) string {
	return filepath.Join(s.root, projectId, filepath.Base(assetName))
}

func (s *Store) Remove(projectId, assetName string) error {
	return os.Remove(s.Path(projectId, assetName))
}

// Read extracts plain text from the asset's file.
func (s *Store) Read(ctx context.Context, asset ragModel.Asset) (string, error) {
	const op = "read content"
	path := s.Path(asset.ProjectId, asset.AssetName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", ragModel.NewError(ragModel.ErrSourceNotFound, op, "no file for asset %q", asset.AssetName)
	} else if err != nil {
		return "", ragModel.Wrap(ragModel.ErrPersistence, op, err)
	}

	var pages []rawPage
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = extractPDF(ctx, path)
	case ".docx", ".rtf", ".odt":
		pages, err = extractDocument(path)
	default:
		pages, err = extractPlainText(path)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ragModel.Opaque(ragModel.ErrPersistence, op, ctxErr)
		}
		return "", ragModel.Wrap(ragModel.ErrSourceNotFound, op, err)
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Content
	}
	return strings.Join(texts, "\n\n"), nil
}

// CleanFileName keeps letters, digits, underscores and dots.
func CleanFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			return r
		}
		return -1
	}, strings.TrimSpace(filepath.Base(name)))
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

func randomKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
