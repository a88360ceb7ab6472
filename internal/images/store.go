// Package images stores uploaded post images on the local filesystem.
package images

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// URLPrefix is the public path under which stored images are served.
const URLPrefix = "images"

var (
	// ErrUnsupportedType is returned for uploads that are not PNG or JPEG images.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrOutsideStore is returned for paths that do not point into the image directory.
	ErrOutsideStore = errors.New("path is outside the image store")
)

var allowedTypes = []string{"image/png", "image/jpeg", "image/jpg"}

// File describes a stored image.
type File struct {
	Path    string
	ModTime time.Time
}

// Store keeps images in a single flat directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the directory images are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes an uploaded file and returns its public path, e.g. "images/1700000000000-cat.png".
// The content type is sniffed from the file itself, not taken from the request.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), cleanName(fh.Filename))
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return path.Join(URLPrefix, name), nil
}

// Remove deletes a stored image by its public path.
func (s *Store) Remove(p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// List returns every file in the store.
func (s *Store) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Path: path.Join(URLPrefix, e.Name()), ModTime: info.ModTime()})
	}
	return files, nil
}

func (s *Store) resolve(p string) (string, error) {
	name, ok := strings.CutPrefix(path.Clean(p), URLPrefix+"/")
	if !ok || name == "" || name != path.Base(name) || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrOutsideStore, p)
	}
	return filepath.Join(s.dir, name), nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
