package enex

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

var ErrNoNotes = errors.New("no .enex files found")

const filePattern = "**/*.{enex,ENEX}"

// Discover lists export files below root, relative to it and sorted.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to read input directory: %s is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), filePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Source chains the notes of every export under a directory. Files are
// opened one at a time as the previous one runs out.
type Source struct {
	root   string
	files  []string
	next   int
	file   *os.File
	reader *Reader
	logger *slog.Logger
}

func OpenDir(root string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoNotes, root)
	}
	return &Source{root: root, files: files, logger: logger}, nil
}

func (s *Source) Files() []string {
	return s.files
}

// Next returns the next note across all files, or io.EOF after the last one.
func (s *Source) Next() (models.RawNote, error) {
	for {
		if s.reader == nil {
			if s.next >= len(s.files) {
				return models.RawNote{}, io.EOF
			}
			if err := s.open(s.files[s.next]); err != nil {
				return models.RawNote{}, err
			}
			s.next++
		}

		note, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			s.closeCurrent()
			continue
		}
		if err != nil {
			return models.RawNote{}, fmt.Errorf("failed to read %s: %w", s.reader.name, err)
		}
		return note, nil
	}
}

func (s *Source) open(name string) error {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	s.logger.Debug("reading export", "file", name)
	s.file = f
	s.reader = NewReader(f, name, s.logger)
	return nil
}

func (s *Source) closeCurrent() {
	if s.file != nil {
		s.file.Close()
	}
	s.file = nil
	s.reader = nil
}

func (s *Source) Close() error {
	var err error
	if s.file != nil {
		err = s.file.Close()
	}
	s.file = nil
	s.reader = nil
	s.next = len(s.files)
	return err
}
