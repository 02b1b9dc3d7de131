package markup

import (
	"reflect"
	"strings"
	"testing"
)

const sampleOutput = "<|ref|>title<|/ref|><|det|>[[10, 20, 300, 40]]<|/det|>\n" +
	"# Annual Report\n\n" +
	"<|ref|>text<|/ref|><|det|>[[10, 50, 300, 90]]<|/det|>\n" +
	"Revenue grew.\n\n\n\n" +
	"<|ref|>table<|/ref|><|det|>[[1,2,3,4]]<|/det|>\n" +
	"<table><tr><td>Q1</td><td>10</td></tr></table>\n"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []CleanOption
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: " \n\n\t\n", want: ""},
		{name: "reference span", input: "A<|ref|>label<|/ref|>B", want: "AB"},
		{name: "detection span dropped", input: "X<|det|>[[1,2,3,4]]<|/det|>Y", want: "XY"},
		{
			name:  "detection span kept",
			input: "X<|det|>[[1,2,3,4]]<|/det|>Y",
			opts:  []CleanOption{WithCoordinates()},
			want:  "X `[[1,2,3,4]]`Y",
		},
		{name: "shortest reference match", input: "<|ref|>a<|/ref|>keep<|ref|>b<|/ref|>", want: "keep"},
		{name: "blank line collapse", input: "A\n\n\n\n B", want: "A\n\n B"},
		{name: "whitespace-only lines are blank", input: "A\n\n \n\nB", want: "A\n\nB"},
		{name: "trailing whitespace per line", input: "  line one   \nline two\t\n\n", want: "line one\nline two"},
		{name: "unterminated reference survives", input: "A<|ref|>label B", want: "A<|ref|>label B"},
		{name: "unterminated detection survives", input: "A<|det|>[[1,2]]", want: "A<|det|>[[1,2]]"},
		{name: "reference across lines survives", input: "<|ref|>a\nb<|/ref|>", want: "<|ref|>a\nb<|/ref|>"},
		{name: "span revealed by removal", input: "<|re<|ref|>x<|/ref|>f|>hidden<|/ref|>visible", want: "visible"},
		{
			name:  "model output",
			input: sampleOutput,
			want:  "# Annual Report\n\nRevenue grew.\n\n<table><tr><td>Q1</td><td>10</td></tr></table>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.input, tt.opts...)
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		sampleOutput,
		"A\n\n \n\n\n\t\nB  ",
		"<|det|>[[a<|det|>[[1]]<|/det|>]]<|/det|>",
		"<|re<|ref|>x<|/ref|>f|>hidden<|/ref|>visible",
		"  \n<|ref|>x<|/ref|>   lead\n\n\n\ntrail \n",
	}
	for _, in := range inputs {
		for _, keep := range []bool{false, true} {
			var opts []CleanOption
			if keep {
				opts = append(opts, WithCoordinates())
			}
			once := Clean(in, opts...)
			twice := Clean(once, opts...)
			if once != twice {
				t.Errorf("Clean not idempotent for %q (keep=%v): %q then %q", in, keep, once, twice)
			}
			if strings.Contains(once, "\n\n\n") {
				t.Errorf("Clean(%q) left a run of blank lines: %q", in, once)
			}
		}
	}
}

func TestCleanTagFreeText(t *testing.T) {
	in := "\n\n  Hello\n\n\n\nWorld  \n"
	want := "Hello\n\nWorld"
	if got := Clean(in); got != want {
		t.Errorf("Clean(%q) = %q, want %q", in, got, want)
	}
}

func TestExtractTables(t *testing.T) {
	t.Run("document order", func(t *testing.T) {
		got := ExtractTables("foo<table>1</table>bar<table>2</table>")
		want := []string{"<table>1</table>", "<table>2</table>"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ExtractTables() = %q, want %q", got, want)
		}
	})

	t.Run("spans lines", func(t *testing.T) {
		got := ExtractTables("<table>\n<tr><td>a</td></tr>\n</table>")
		if len(got) != 1 || got[0] != "<table>\n<tr><td>a</td></tr>\n</table>" {
			t.Errorf("unexpected tables: %q", got)
		}
	})

	t.Run("unbalanced", func(t *testing.T) {
		got := ExtractTables("<table><table>inner</table></table>")
		if len(got) != 1 || got[0] != "<table><table>inner</table>" {
			t.Errorf("unexpected tables: %q", got)
		}
	})

	t.Run("none", func(t *testing.T) {
		if got := ExtractTables("no tables here"); len(got) != 0 {
			t.Errorf("expected no tables, got %q", got)
		}
	})
}

func TestExtractTextOnly(t *testing.T) {
	if got := ExtractTextOnly(sampleOutput); got != "Revenue grew." {
		t.Errorf("ExtractTextOnly() = %q, want %q", got, "Revenue grew.")
	}

	in := "# One\n\nfirst\n\n## Two\n\nsecond"
	if got := ExtractTextOnly(in); got != "first\n\nsecond" {
		t.Errorf("ExtractTextOnly(%q) = %q", in, got)
	}

	if got := ExtractTextOnly(""); got != "" {
		t.Errorf("ExtractTextOnly(\"\") = %q", got)
	}
}

func TestToPlainText(t *testing.T) {
	got := ToPlainText(sampleOutput)

	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "#") {
			t.Errorf("heading marker survived: %q", line)
		}
	}
	if strings.ContainsAny(got, "<>") {
		t.Errorf("table markup survived: %q", got)
	}
	if !strings.HasPrefix(got, "Annual Report\n\nRevenue grew.") {
		t.Errorf("unexpected plain text: %q", got)
	}
	if !strings.Contains(got, "| Q1 | | 10 |") {
		t.Errorf("table not flattened: %q", got)
	}

	t.Run("stacked heading markers", func(t *testing.T) {
		tests := map[string]string{
			"# # x":            "x",
			"## #\tx":          "x",
			"# ## ### deep":    "deep",
			"intro\n\n# # end": "intro\n\nend",
			"#\n# x":           "x",
		}
		for in, want := range tests {
			got := ToPlainText(in)
			if got != want {
				t.Errorf("ToPlainText(%q) = %q, want %q", in, got, want)
			}
			for _, line := range strings.Split(got, "\n") {
				if strings.HasPrefix(line, "# ") {
					t.Errorf("ToPlainText(%q) line starts with heading marker: %q", in, line)
				}
			}
		}
	})
}

func TestFormatWithStructure(t *testing.T) {
	t.Run("basic document", func(t *testing.T) {
		got := FormatWithStructure("# Title\n\nSome text.\n\n<table>x</table>")
		want := Structured{
			Titles:     []Title{{Level: 1, Text: "Title"}},
			Tables:     []string{"<table>x</table>"},
			Paragraphs: []string{"Some text."},
			FullText:   "# Title\n\nSome text.\n\n<table>x</table>",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("FormatWithStructure() = %+v, want %+v", got, want)
		}
	})

	t.Run("heading levels", func(t *testing.T) {
		got := FormatWithStructure("# A\n\n### B\n\ntext\n\n###### C")
		want := []Title{{1, "A"}, {3, "B"}, {6, "C"}}
		if !reflect.DeepEqual(got.Titles, want) {
			t.Errorf("Titles = %+v, want %+v", got.Titles, want)
		}
		if !reflect.DeepEqual(got.Paragraphs, []string{"text"}) {
			t.Errorf("Paragraphs = %q", got.Paragraphs)
		}
	})

	t.Run("tables come from raw input", func(t *testing.T) {
		in := "<table><|ref|>x<|/ref|>cell</table>"
		got := FormatWithStructure(in)
		if !reflect.DeepEqual(got.Tables, []string{in}) {
			t.Errorf("Tables = %q, want raw block", got.Tables)
		}
		if len(got.Paragraphs) != 0 {
			t.Errorf("Paragraphs = %q, want none", got.Paragraphs)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		got := FormatWithStructure("")
		if got.Titles == nil || got.Tables == nil || got.Paragraphs == nil {
			t.Fatalf("expected empty non-nil slices, got %+v", got)
		}
		if got.FullText != "" || len(got.Titles)+len(got.Tables)+len(got.Paragraphs) != 0 {
			t.Errorf("expected empty structure, got %+v", got)
		}
	})
}
