package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Area is one of the top-level directories a run writes to.
type Area string

// Storage areas.
const (
	AreaRaw         Area = "raw"
	AreaTransformed Area = "transformed"
	AreaDocuments   Area = "documents"
	AreaReports     Area = "reports"
	AreaData        Area = "data"
	AreaLogs        Area = "logs"
)

// Areas lists every storage area.
var Areas = []Area{AreaRaw, AreaTransformed, AreaDocuments, AreaReports, AreaData, AreaLogs}

var (
	// ErrEmptyArtifact is returned when a stored artifact has zero bytes.
	ErrEmptyArtifact = errors.New("artifact is empty")

	// ErrNotImage is returned when a stored artifact's content is not an image.
	ErrNotImage = errors.New("artifact is not an image")

	// ErrUnknownArea is returned for an area the layout does not define.
	ErrUnknownArea = errors.New("unknown storage area")
)

// Layout maps each area to a directory. Relative area directories are
// resolved against Base.
type Layout struct {
	Base string
	Dirs map[Area]string
}

// DefaultLayout returns a layout rooted at base with each area stored in a
// directory named after it.
func DefaultLayout(base string) Layout {
	dirs := make(map[Area]string, len(Areas))
	for _, a := range Areas {
		dirs[a] = string(a)
	}
	return Layout{Base: base, Dirs: dirs}
}

// Store reads and writes run artifacts on an afero filesystem.
type Store struct {
	fs     afero.Fs
	layout Layout
}

// New creates a Store. Areas missing from layout fall back to their
// default directory names.
func New(fsys afero.Fs, layout Layout) *Store {
	full := DefaultLayout(layout.Base)
	for a, d := range layout.Dirs {
		if d != "" {
			full.Dirs[a] = d
		}
	}
	return &Store{fs: fsys, layout: full}
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// Dir returns the directory of an area.
func (s *Store) Dir(area Area) string {
	d, ok := s.layout.Dirs[area]
	if !ok {
		d = string(area)
	}
	if filepath.IsAbs(d) {
		return d
	}
	return filepath.Join(s.layout.Base, d)
}

// Path returns the full path of name inside area.
func (s *Store) Path(area Area, name string) string {
	return filepath.Join(s.Dir(area), name)
}

// Ensure creates every area directory.
func (s *Store) Ensure() error {
	for _, a := range Areas {
		if err := s.fs.MkdirAll(s.Dir(a), 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", a, err)
		}
	}
	return nil
}

// Exists reports whether a non-directory file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// Size returns the size in bytes of the file at path.
func (s *Store) Size(path string) (int64, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Write atomically stores data as name inside area and returns the full
// path. The content is written to a temporary file in the same directory
// and renamed into place.
func (s *Store) Write(area Area, name string, data []byte) (string, error) {
	path := s.Path(area, name)
	if err := WriteFileAtomic(s.fs, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON atomically stores v as indented JSON.
func (s *Store) WriteJSON(area Area, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.Write(area, name, append(data, '\n'))
}

// Read returns the content of name inside area.
func (s *Store) Read(area Area, name string) ([]byte, error) {
	return afero.ReadFile(s.fs, s.Path(area, name))
}

// ReadPath returns the content of the file at path.
func (s *Store) ReadPath(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// ReadJSON decodes name inside area into v.
func (s *Store) ReadJSON(area Area, name string, v any) error {
	data, err := s.Read(area, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// List returns the sorted file names in area that end in one of exts.
// With no exts every file is returned. A missing area yields no names.
func (s *Store) List(area Area, exts ...string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.Dir(area))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", area, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), exts) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Usage summarizes the files of one area.
type Usage struct {
	Files        int   `json:"image_count"`
	TotalBytes   int64 `json:"total_size"`
	AverageBytes int64 `json:"average_size"`
}

// Usage reports how many files with the given extensions area holds and
// how much space they take.
func (s *Store) Usage(area Area, exts ...string) (Usage, error) {
	names, err := s.List(area, exts...)
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	for _, n := range names {
		size, err := s.Size(s.Path(area, n))
		if err != nil {
			continue
		}
		u.Files++
		u.TotalBytes += size
	}
	if u.Files > 0 {
		u.AverageBytes = u.TotalBytes / int64(u.Files)
	}
	return u, nil
}

// VerifyImage cheaply checks that the file at path is a non-empty image by
// sniffing its leading bytes. It does not decode the image.
func (s *Store) VerifyImage(path string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("failed to sniff %s: %w", path, err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Errorf("%s is %s: %w", path, mt.String(), ErrNotImage)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temporary sibling file and
// a rename, creating parent directories as needed.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = fsys.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := fsys.Chmod(tmpName, 0o644); err != nil && !errors.Is(err, os.ErrNotExist) {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range exts {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

// FindImage returns the path of the first of names in area that exists.
// When verify is set, a candidate failing VerifyImage is skipped and
// reported in rejected so the caller can overwrite it.
func (s *Store) FindImage(area Area, names []string, verify bool) (path string, rejected []string) {
	for _, n := range names {
		p := s.Path(area, n)
		if !s.Exists(p) {
			continue
		}
		if verify {
			if err := s.VerifyImage(p); err != nil {
				rejected = append(rejected, p)
				continue
			}
		}
		return p, rejected
	}
	return "", rejected
}
