package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"

	"safeshield/config"
	"safeshield/core/response"
	"safeshield/core/utils"
)

var (
	ErrTooLarge      = errors.New("evidence file exceeds upload limit")
	ErrEmptyFilename = errors.New("evidence filename empty")
)

// Storage keeps evidence files on local disk under
// <dir>/<incident>/<step>/<uuid>_<safe-filename> and hands back opaque
// file URLs of the form evidence://<relative-path>. Raw bytes never pass
// through the response core; it only sees the returned reference.
type Storage struct {
	dir      string
	maxBytes int64
	logger   *utils.Logger
}

func NewStorage(cfg config.EvidenceConfig, logger *utils.Logger) (*Storage, error) {
	dir := cfg.StorageDir
	if dir == "" {
		dir = "data/evidence"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &Storage{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

const urlScheme = "evidence://"

// UploadFile streams content to disk, hashing as it goes. Any failure
// removes the partial file so a failed upload leaves no trace.
func (s *Storage) UploadFile(ctx context.Context, incidentID string, stepID response.StepID, filename string, content io.Reader) (*response.UploadResult, error) {
	safe := sanitizeFilename(filename)
	if safe == "" {
		return nil, ErrEmptyFilename
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Join(incidentID, string(stepID), uuid.Must(uuid.NewV4()).String()+"_"+safe)
	abs := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, err
	}
	hasher := sha256.New()
	// Read one byte past the limit so oversized uploads are detected
	// without trusting a client-declared length.
	written, err := io.Copy(io.MultiWriter(f, hasher), io.LimitReader(content, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		if rmErr := os.Remove(abs); rmErr != nil {
			s.logger.Errorf("remove partial evidence file %s: %v", abs, rmErr)
		}
		return nil, err
	}
	return &response.UploadResult{
		FileURL:  urlScheme + filepath.ToSlash(rel),
		FileType: detectContentType(safe),
		FileSize: written,
		SHA256:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Remove deletes a stored file by its opaque URL. Missing files are not an
// error; the goal state is "gone".
func (s *Storage) Remove(ctx context.Context, fileURL string) error {
	abs, err := s.resolve(fileURL)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Open returns a reader over a stored file for download handlers.
func (s *Storage) Open(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	abs, err := s.resolve(fileURL)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

func (s *Storage) resolve(fileURL string) (string, error) {
	rel, ok := strings.CutPrefix(fileURL, urlScheme)
	if !ok {
		return "", fmt.Errorf("unknown evidence url %q", fileURL)
	}
	rel = filepath.FromSlash(rel)
	if rel == "" || filepath.IsAbs(rel) || strings.Contains(rel, "..") {
		return "", fmt.Errorf("invalid evidence url %q", fileURL)
	}
	return filepath.Join(s.dir, rel), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > 128 {
		out = out[len(out)-128:]
	}
	return out
}

func detectContentType(filename string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
