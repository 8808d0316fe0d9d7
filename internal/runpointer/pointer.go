// Package runpointer persists the id of the most recent training run.
package runpointer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mlgate/domain/core"
	"mlgate/internal/errors"
)

// DefaultPath is the pointer file written next to the working directory
const DefaultPath = "last_run_id.txt"

// Write overwrites the pointer file with id
func Write(path string, id core.RunID) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.FileSystemError(fmt.Sprintf("failed to create %s", dir), err)
		}
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return errors.FileSystemError(fmt.Sprintf("failed to write run pointer %s", path), err)
	}
	return nil
}

// Read returns the id in the pointer file. ok is false when the file is
// missing or blank.
func Read(path string) (id core.RunID, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.FileSystemError(fmt.Sprintf("failed to read run pointer %s", path), err)
	}
	line := strings.TrimSpace(string(data))
	if line == "" {
		return "", false, nil
	}
	id, err = core.ParseRunID(line)
	if err != nil {
		return "", false, errors.WithCode(errors.CodeConfigInvalid, err, fmt.Sprintf("run pointer %s is malformed", path))
	}
	return id, true, nil
}
