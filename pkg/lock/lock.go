package lock

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is where the lock record lands relative to the working
// directory, matching what downstream tooling expects to find.
const DefaultPath = ".package-lock.json"

// Lock is the persisted snapshot of a resolved set: package name to the
// concrete version selected for it.
type Lock map[string]string

func FromFile(lockFile string) (Lock, error) {
	payload, err := os.ReadFile(lockFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load lockfile: %w", err)
	}
	var lock Lock
	if err := json.Unmarshal(payload, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}
	return lock, nil
}

// SaveToFile writes the lock as indented JSON, truncating any prior
// record. Keys marshal in sorted order, so the output is deterministic.
func (lock Lock) SaveToFile(lockFile string) error {
	jsonb, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshall json: %w", err)
	}
	// Github and pre-commit checks (like end-of-file-fixer) are expecting ASCII files
	// to end with a newline that marshal is not providing.
	jsonb = append(jsonb, '\n')
	return os.WriteFile(lockFile, jsonb, 0o644)
}
