package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// ReadBundleFile reads bundle JSON from a .json, .jsonc or .html file.
// Comments and trailing commas in .jsonc files are stripped.
func ReadBundleFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
	case ".jsonc":
		data = jsonc.ToJSON(data)
	case ".html", ".htm":
		data, err = ImportHTML(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("storage: %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("storage: %s: unsupported bundle file type %q", path, ext)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("storage: %s: invalid JSON", path)
	}
	return data, nil
}

// WriteBundleFile writes bundleJSON to a .json file as is, or to a .html
// file using DefaultTemplate.
func WriteBundleFile(path string, bundleJSON []byte) error {
	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data = bundleJSON
	case ".html", ".htm":
		var buf bytes.Buffer
		if err := ExportHTML(&buf, nil, bundleJSON); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("storage: %s: unsupported output type %q", path, ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
