// Package report writes the inventory and application documents to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/breeze-rmm/host-inventory/internal/collectors"
	"github.com/breeze-rmm/host-inventory/internal/platform"
)

// TimestampLayout is ISO-8601 in UTC with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

const indent = "    "

// OutputDocument is the inventory file.
type OutputDocument struct {
	OSDetected platform.Platform    `json:"os_detected"`
	Timestamp  string               `json:"timestamp"`
	Inventory  collectors.Inventory `json:"inventory"`
}

// NewOutputDocument stamps inv with the collection time t.
func NewOutputDocument(p platform.Platform, t time.Time, inv collectors.Inventory) OutputDocument {
	return OutputDocument{
		OSDetected: p,
		Timestamp:  t.UTC().Format(TimestampLayout),
		Inventory:  inv,
	}
}

// ApplicationsDocument is the installed applications file.
type ApplicationsDocument struct {
	Applications collectors.Applications `json:"applications"`
}

// NewApplicationsDocument wraps apps, never producing a null list.
func NewApplicationsDocument(apps collectors.Applications) ApplicationsDocument {
	if apps == nil {
		apps = collectors.Applications{}
	}
	return ApplicationsDocument{Applications: apps}
}

// WriteError reports an output file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteJSON writes v to path as indented JSON, replacing any existing file.
// The document goes to a temporary file in the same directory first and is
// renamed into place, so readers never see a partial document. A symlinked
// path is written through to its target, and an existing file keeps its mode.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	data = append(data, '\n')

	target, perm := resolveTarget(path)
	if err := writeFileAtomic(target, data, perm); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// resolveTarget follows symlinks at path and returns the file to replace with
// the permissions it should end up with.
func resolveTarget(path string) (string, os.FileMode) {
	target := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
	}
	if fi, err := os.Stat(target); err == nil && fi.Mode().IsRegular() {
		return target, fi.Mode().Perm()
	}
	return target, 0644
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
