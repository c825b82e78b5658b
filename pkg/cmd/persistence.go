// Package cmd provides common initialization for the robot binaries.
package cmd

import (
	"fmt"
	"strings"

	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/persistence/file"
	"github.com/dorumake/robot/pkg/persistence/redis"
)

// NewPersistence picks the storage backend from the database URL scheme.
// redis:// selects Redis; anything else is treated as a file root.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "redis://"):
		store, err := redis.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis persistence: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
