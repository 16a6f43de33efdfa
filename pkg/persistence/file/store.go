package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errInvalidID = errors.New("invalid record identifier")

// jsonDir stores one JSON document per record under dir.
type jsonDir[T any] struct {
	dir string
}

func (d jsonDir[T]) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidID, id)
	}

	return filepath.Join(d.dir, id+".json"), nil
}

// read returns nil, nil when the record does not exist.
func (d jsonDir[T]) read(id string) (*T, error) {
	filePath, err := d.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var record T

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}

	return &record, nil
}

// write replaces the record through a temporary file so readers never see a partial document.
func (d jsonDir[T]) write(id string, record *T) error {
	filePath, err := d.path(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	err = os.MkdirAll(d.dir, 0750)
	if err != nil {
		return err
	}

	tmp := filePath + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, filePath)
}

// restore puts back a previous version of the record, or removes it when
// there was none.
func (d jsonDir[T]) restore(id string, previous *T) error {
	if previous != nil {
		return d.write(id, previous)
	}

	filePath, err := d.path(id)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (d jsonDir[T]) all() ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(d.dir), "*.json")
	if err != nil {
		return nil, err
	}

	records := make([]*T, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		record, err := d.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}
