package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("storage: object not found")
	ErrUnsupportedFormat  = errors.New("storage: unsupported image format")
	ErrInvalidObjectName  = errors.New("storage: invalid object name")
	errEmptyUserID        = errors.New("storage: user id is required")
	maxAvatarBytes  int64 = 5 << 20
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// AvatarStore keeps uploaded avatar images on disk. Object names are
// "<userID>-<unix millis>.<ext>" so repeat uploads never collide and the
// owning user is recoverable from the name alone.
type AvatarStore struct {
	dir string
	now func() time.Time
}

func NewAvatarStore(dir string) (*AvatarStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &AvatarStore{dir: dir, now: time.Now}, nil
}

// Save streams the upload to disk and returns the generated object name.
func (s *AvatarStore) Save(userID, filename string, r io.Reader) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, "/\\.") {
		return "", errEmptyUserID
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedFormat
	}

	name := fmt.Sprintf("%s-%d%s", userID, s.now().UnixMilli(), ext)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(r, maxAvatarBytes)); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return name, nil
}

// Open returns the stored object for serving. The name is validated so a
// crafted path cannot escape the store directory.
func (s *AvatarStore) Open(name string) (io.ReadCloser, error) {
	if !validObjectName(name) {
		return nil, ErrInvalidObjectName
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func validObjectName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := allowedExtensions[ext]
	return ok
}
