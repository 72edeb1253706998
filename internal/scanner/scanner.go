// Package scanner discovers controller files beneath a root directory.
//
// A file is a controller when its base name, without extension, ends with
// "_<suffix>" for one of the configured suffixes and its extension is one of
// the configured extensions. When a custom pattern is configured it replaces
// suffix matching entirely and is applied to the full base name. Directories
// are walked recursively; symbolic links are not followed.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gerrors "github.com/conneroisu/girouette/internal/errors"
)

// DefaultSuffixes are the file name suffixes matched when none are configured.
var DefaultSuffixes = []string{"controller"}

// DefaultExtensions are the controller manifest formats.
var DefaultExtensions = []string{"yaml", "yml", "json", "toml"}

// Scanner walks a directory tree looking for controller files.
type Scanner struct {
	// Root is the directory to walk.
	Root string
	// Suffixes are matched against the end of the base name, after an underscore.
	Suffixes []string
	// Extensions are matched without the leading dot, case-insensitively.
	Extensions []string
	// Pattern, when set, is the only matching rule.
	Pattern *regexp.Regexp
}

// New creates a scanner for root with the default suffixes and extensions.
func New(root string) *Scanner {
	return &Scanner{
		Root:       root,
		Suffixes:   append([]string(nil), DefaultSuffixes...),
		Extensions: append([]string(nil), DefaultExtensions...),
	}
}

// WithPattern sets a custom selector. An empty expression clears it.
func (s *Scanner) WithPattern(expr string) (*Scanner, error) {
	if expr == "" {
		s.Pattern = nil
		return s, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "invalid controller pattern "+expr).
			WithContext("cause", err.Error())
	}
	s.Pattern = re
	return s, nil
}

// Discover returns the absolute paths of every controller file under Root.
// Callers must not depend on the order.
func (s *Scanner) Discover() ([]string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, gerrors.ErrRootNotFound(s.Root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, gerrors.ErrRootNotFound(root, err)
	}
	if !info.IsDir() {
		return nil, gerrors.NewFilesystemError(gerrors.ErrCodeRootNotFound,
			"controllers path is not a directory", nil).WithPath(root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		if s.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, gerrors.NewFilesystemError(gerrors.ErrCodeWalkFailed,
			"walking controllers directory", err).WithPath(root)
	}

	return files, nil
}

// Match reports whether path names a controller file.
func (s *Scanner) Match(path string) bool {
	base := filepath.Base(path)
	if s.Pattern != nil {
		return s.Pattern.MatchString(base)
	}

	ext := filepath.Ext(base)
	if ext == "" || !s.hasExtension(ext[1:]) {
		return false
	}

	stem := strings.TrimSuffix(base, ext)
	suffixes := s.Suffixes
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(stem, "_"+suffix) {
			return true
		}
	}
	return false
}

func (s *Scanner) hasExtension(ext string) bool {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}
