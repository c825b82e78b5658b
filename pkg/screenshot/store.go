// Package screenshot persists diagnostic screenshots captured during runs.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dorumake/robot/pkg/models"
)

// Store writes one screenshot and returns a reference for log entries.
// Tags are attempt numbers plus "failed" and "complete".
type Store interface {
	Save(ctx context.Context, orderID string, step models.Step, tag string, png []byte) (string, error)
}

// FSStore writes screenshots under root/<date>/, one file per capture with
// the order, step and tag in the name.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Save(_ context.Context, orderID string, step models.Step, tag string, png []byte) (string, error) {
	dir := filepath.Join(s.root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s_%s.png",
		sanitize(orderID), step, sanitize(tag), time.Now().Format("150405"))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	return path, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		default:
			return r
		}
	}, s)
}
