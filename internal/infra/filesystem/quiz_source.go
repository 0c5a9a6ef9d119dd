// Package filesystem serves quiz files from a local directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"trivia-night-service/internal/domain"
)

// QuizSource reads quiz files by name from a directory.
type QuizSource struct {
	dir string
}

func NewQuizSource(dir string) *QuizSource {
	return &QuizSource{dir: dir}
}

// Fetch returns the raw bytes of the named file. A name without a .json or
// .js extension gets .json appended. Names may not leave the directory.
func (s *QuizSource) Fetch(_ context.Context, name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("file", "please enter a quiz file name")
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".json" && ext != ".js" {
		name += ".json"
	}
	if !fs.ValidPath(filepath.ToSlash(name)) {
		return nil, domain.Validationf("file", "invalid quiz file name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("quiz file %s: %w", name, domain.ErrQuizNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read quiz file %s: %w", name, err)
	}
	return data, nil
}
