package fixtures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
)

var (
	// ErrNotFound is returned for names that do not resolve to a regular file.
	ErrNotFound = errors.New("fixture not found")
	// ErrForbidden is returned for names outside the root or the allow-list.
	ErrForbidden = errors.New("fixture not allowed")
)

// IndexName is served for the root path.
const IndexName = "index.html"

// Entry describes one servable file.
type Entry struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Modified    time.Time `json:"modified"`
}

// Fixture is a loaded file.
type Fixture struct {
	Entry
	Data []byte
}

// Store serves files from one directory, limited to paths matching at least
// one doublestar pattern.
type Store struct {
	root     string
	resolved string
	patterns []string
}

// NewStore creates a store rooted at dir. An empty pattern list allows every
// file.
func NewStore(dir string, patterns []string) (*Store, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve fixtures dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("fixtures dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures dir %s is not a directory", root)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve fixtures dir: %w", err)
	}

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid fixture pattern %q", p)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}

	return &Store{root: root, resolved: resolved, patterns: patterns}, nil
}

// Root returns the absolute fixtures directory.
func (s *Store) Root() string {
	return s.root
}

// Allowed reports whether a slash-separated relative name matches the allow-list.
func (s *Store) Allowed(name string) bool {
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// List walks the root and returns every allowed regular file, sorted by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var (
		mu      sync.Mutex
		entries []Entry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.resolved, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.resolved, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !s.Allowed(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		entry := Entry{
			Path:        rel,
			Size:        info.Size(),
			ContentType: contentTypeByName(rel),
			Modified:    info.ModTime(),
		}

		// fastwalk calls back from several goroutines.
		mu.Lock()
		entries = append(entries, entry)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk fixtures: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Open loads a fixture by its slash-separated name. An empty name or "/"
// loads IndexName. Like List, it never follows a symlink below the root.
func (s *Store) Open(name string) (*Fixture, error) {
	rel, err := s.clean(name)
	if err != nil {
		return nil, err
	}
	if !s.Allowed(rel) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, rel)
	}

	full := filepath.Join(s.resolved, filepath.FromSlash(rel))
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if target != full {
		return nil, fmt.Errorf("%w: %s is a link", ErrForbidden, rel)
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", rel, err)
	}

	return &Fixture{
		Entry: Entry{
			Path:        rel,
			Size:        info.Size(),
			ContentType: DetectContentType(rel, data),
			Modified:    info.ModTime(),
		},
		Data: data,
	}, nil
}

func (s *Store) clean(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return IndexName, nil
	}
	if strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: %s", ErrForbidden, name)
	}

	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrForbidden, name)
		}
	}

	rel := path.Clean(name)
	if rel == "." {
		return IndexName, nil
	}
	if strings.HasSuffix(name, "/") {
		rel = path.Join(rel, IndexName)
	}
	return rel, nil
}

// DetectContentType sniffs data with mimetype. Plain text results defer to
// the file extension so scripts and stylesheets keep their real types.
func DetectContentType(name string, data []byte) string {
	detected := mimetype.Detect(data)
	if detected.Is("text/plain") {
		if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
			return byExt
		}
	}
	return detected.String()
}

func contentTypeByName(name string) string {
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// Gzip compresses data for a response body.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(zw, bytes.NewReader(data)); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
