package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dorumake/robot/pkg/models"
)

// StepLogRepository appends entries to one JSON-lines file per order. Lines
// are only ever appended, matching the audit-trail contract.
type StepLogRepository struct {
	root string
	mu   sync.Mutex
}

func NewStepLogRepository(root string) *StepLogRepository {
	return &StepLogRepository{root: root}
}

func (r *StepLogRepository) path(orderID string) string {
	return filepath.Join(r.root, "steplogs", orderID+".jsonl")
}

func (r *StepLogRepository) Append(_ context.Context, entry *models.StepLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := ensureDir(r.root, "steplogs"); err != nil {
		return fmt.Errorf("ensure steplogs dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal step log: %w", err)
	}

	f, err := os.OpenFile(r.path(entry.OrderID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open step log for %s: %w", entry.OrderID, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append step log for %s: %w", entry.OrderID, err)
	}

	return nil
}

func (r *StepLogRepository) ListByOrder(_ context.Context, orderID string) ([]*models.StepLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path(orderID))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open step log for %s: %w", orderID, err)
	}
	defer f.Close()

	var entries []*models.StepLogEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry models.StepLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode step log line for %s: %w", orderID, err)
		}

		entries = append(entries, &entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan step log for %s: %w", orderID, err)
	}

	return entries, nil
}
