package markup

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestTableRows(t *testing.T) {
	table := "<table><tr><th>Name</th><th>Qty</th></tr><tr><td>Apple</td><td> 3 </td></tr></table>"
	got := TableRows(table)
	want := [][]string{{"Name", "Qty"}, {"Apple", "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TableRows() = %q, want %q", got, want)
	}

	if rows := TableRows("not a table"); len(rows) != 0 {
		t.Errorf("expected no rows, got %q", rows)
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("# Hi<|ref|>x<|/ref|>\n\n<table><tr><td>1</td></tr></table>")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(out, "<h1>Hi</h1>") {
		t.Errorf("missing heading: %q", out)
	}
	if !strings.Contains(out, "<table><tr><td>1</td></tr></table>") {
		t.Errorf("table markup not passed through: %q", out)
	}
}

func TestSaveMarkdown(t *testing.T) {
	dir := t.TempDir()
	raw := "A<|ref|>x<|/ref|><|det|>[[1,2]]<|/det|>B\n\n\n\nC"

	tests := []struct {
		name string
		opts []SaveOption
		want string
	}{
		{name: "cleaned by default", want: "AB\n\nC"},
		{name: "raw", opts: []SaveOption{WithoutCleaning()}, want: raw},
		{name: "coordinates kept", opts: []SaveOption{WithKeptCoordinates()}, want: "A `[[1,2]]`B\n\nC"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.Repeat("x", i+1)+".md")
			if err := SaveMarkdown(raw, path, tt.opts...); err != nil {
				t.Fatalf("SaveMarkdown() error = %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("file = %q, want %q", data, tt.want)
			}
		})
	}

	t.Run("overwrites", func(t *testing.T) {
		path := filepath.Join(dir, "over.md")
		if err := os.WriteFile(path, []byte("old content that is longer"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := SaveMarkdown("new", path); err != nil {
			t.Fatalf("SaveMarkdown() error = %v", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "new" {
			t.Errorf("file = %q, want %q", data, "new")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		err := SaveMarkdown("x", filepath.Join(dir, "missing", "out.md"))
		if err == nil {
			t.Fatal("expected error for missing directory")
		}
	})
}

func TestSaveText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := SaveText("## Heading\n\nbody", path); err != nil {
		t.Fatalf("SaveText() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Heading\n\nbody" {
		t.Errorf("file = %q", data)
	}
}
