package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phanxgames/sapling"
	"github.com/phanxgames/sapling/project"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func writeBundle(t *testing.T, dir string, mutate func(*sapling.Bundle[*project.Project])) (string, []byte) {
	t.Helper()
	b, err := project.New(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(&b)
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "bundle.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestValidateAcceptsNewProject(t *testing.T) {
	path, _ := writeBundle(t, t.TempDir(), nil)
	out, err := runCLI(t, "validate", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("stdout = %q", out)
	}
}

func TestValidateReportsMissingResources(t *testing.T) {
	var tileset sapling.ResourceID
	path, _ := writeBundle(t, t.TempDir(), func(b *sapling.Bundle[*project.Project]) {
		tileset = b.Project.Tileset
		delete(b.Resources, tileset)
	})
	for _, args := range [][]string{
		{"validate", path},
		{"validate", "--manifest-path", "tileset", path},
	} {
		out, err := runCLI(t, args...)
		var malformed *sapling.MalformedBundleError
		if !errors.As(err, &malformed) {
			t.Fatalf("%v: err = %v", args, err)
		}
		if !strings.Contains(out, "missing "+string(tileset)) {
			t.Errorf("%v: stdout = %q", args, out)
		}
	}
}

func TestConvertSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src, data := writeBundle(t, dir, nil)
	page := filepath.Join(dir, "game.html")
	db := filepath.Join(dir, "sapling.db")
	out := filepath.Join(dir, "out.json")

	if _, err := runCLI(t, "convert", src, page); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := runCLI(t, "save", "--db", db, "--key", "demo", "--compression", "lz4", page); err != nil {
		t.Fatalf("save: %v", err)
	}
	keys, err := runCLI(t, "keys", "--db", db)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !strings.Contains(keys, "demo") || !strings.Contains(keys, "lz4") {
		t.Errorf("keys output = %q", keys)
	}
	if _, err := runCLI(t, "load", "--db", db, "--key", "demo", out); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("bundle changed across convert, save and load")
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"validate"},
		{"convert", "only-one.json"},
		{"save", "--compression", "gzip"},
	}
	for _, args := range tests {
		if _, err := runCLI(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestSayPaginates(t *testing.T) {
	pages := renderPages("hello there{pg}##second## page", 12, 1)
	if len(pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(pages))
	}
	if !strings.Contains(pages[0], "hello there") {
		t.Errorf("page 1 = %q", pages[0])
	}
	if !strings.Contains(pages[1], "page") {
		t.Errorf("page 2 = %q", pages[1])
	}

	out, err := runCLI(t, "say", "--width", "10", "--lines", "1", "one two three")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "page 2/2") {
		t.Errorf("say output = %q", out)
	}
}
