// Package filestore maps user ids onto isolated directories under a single
// root and owns every byte written there. Ids and file names are reduced to a
// restricted character set before they ever become path segments, so no
// caller-supplied value can escape its user directory.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// maxRenameAttempts bounds the collision-suffix search on upload.
const maxRenameAttempts = 1000

var (
	ErrNotFound         = errors.New("file not found")
	ErrTooManyConflicts = errors.New("too many name conflicts")

	idUnsafe   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	nameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

type Entry struct {
	Name         string    `json:"fileName"`
	RelPath      string    `json:"relativePath,omitempty"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

// SanitizeID reduces a user id to letters, digits, underscore, and hyphen.
func SanitizeID(userID string) string {
	return idUnsafe.ReplaceAllString(userID, "_")
}

// SanitizeFileName additionally allows dots, keeping extensions intact. The
// result is always a bare base name.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return nameUnsafe.ReplaceAllString(base, "_")
}

// UserDir returns the user's directory, creating it on first use.
func (s *Store) UserDir(userID string) (string, error) {
	safeID := SanitizeID(userID)
	if safeID == "" {
		return "", errors.New("empty user id")
	}
	dir := filepath.Join(s.root, safeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Save streams r into the user's directory under the sanitized name. When the
// name is taken it retries with a numeric suffix before the extension
// (report.pdf, report_1.pdf, ...), giving up after maxRenameAttempts. It
// returns the name the file was stored under and the byte count written. A
// failed write never leaves a partial file behind.
func (s *Store) Save(userID, name string, r io.Reader) (string, int64, error) {
	dir, err := s.UserDir(userID)
	if err != nil {
		return "", 0, err
	}

	fileName := SanitizeFileName(name)
	if fileName == "" {
		return "", 0, errors.New("invalid file name")
	}

	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)

	candidate := fileName
	var out *os.File
	for attempt := 0; ; attempt++ {
		if attempt >= maxRenameAttempts {
			return "", 0, ErrTooManyConflicts
		}
		if attempt > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
		}

		out, err = os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, err
		}
	}

	written, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		_ = os.Remove(out.Name())
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", 0, err
	}

	return candidate, written, nil
}

// List enumerates the entries directly inside the user's directory.
// Subdirectories are not descended into for the per-user file API.
func (s *Store) List(userID string) ([]Entry, error) {
	dir := filepath.Join(s.root, SanitizeID(userID))

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:         de.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	return entries, nil
}

// ListRecursive walks the user's directory including subdirectories; used by
// the disk report, which accounts for everything on disk.
func ListRecursive(userDir string) ([]Entry, error) {
	if _, err := os.Stat(userDir); err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := []Entry{}
	err := filepath.WalkDir(userDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(userDir, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:         d.Name(),
			RelPath:      rel,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Open returns a handle on the user's file for streaming out.
func (s *Store) Open(userID, name string) (*os.File, os.FileInfo, error) {
	path, err := s.resolve(userID, name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}

	return f, info, nil
}

// Delete removes the file with the exact sanitized name from the user's
// directory.
func (s *Store) Delete(userID, name string) error {
	path, err := s.resolve(userID, name)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	if info.IsDir() {
		return ErrNotFound
	}

	return os.Remove(path)
}

// Usage sums the sizes of all files currently stored for the user. Recomputed
// from the directory on every call; the directory is the ledger.
func (s *Store) Usage(userID string) (int64, error) {
	entries, err := s.List(userID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}

func (s *Store) resolve(userID, name string) (string, error) {
	safeID := SanitizeID(userID)
	if safeID == "" {
		return "", errors.New("empty user id")
	}
	fileName := SanitizeFileName(name)
	if fileName == "" {
		return "", errors.New("invalid file name")
	}
	return filepath.Join(s.root, safeID, fileName), nil
}

// MaskName redacts the interior of a file name for reduced-privilege viewers:
// first and last character of the base name around a fixed placeholder, with
// the extension preserved. Base names of two characters or fewer collapse to
// the placeholder alone.
func MaskName(name string) string {
	if name == "" {
		return "***"
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if len(stem) <= 2 {
		return "***" + ext
	}

	return fmt.Sprintf("%c***%c%s", stem[0], stem[len(stem)-1], ext)
}
