package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/adamancini/updraft/internal/update"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriter_Outcome(t *testing.T) {
	outcome := update.Available(&update.UpdateDescriptor{Version: "2.0.0", DownloadURL: "https://example.com/a.zip"})

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatText, []string{"update-available 2.0.0"}},
		{FormatJSON, []string{`"status": "update-available"`, `"version": "2.0.0"`}},
		{FormatYAML, []string{"status: update-available", "version: 2.0.0"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf, tt.format).Write(outcome); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output %q missing %q", buf.String(), s)
				}
			}
		})
	}
}

func TestWriter_WriteText(t *testing.T) {
	text := func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "custom")
		return err
	}
	value := map[string]int{"kept": 2}

	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatText).WriteText(value, text); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "custom\n" {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	if err := NewWriter(&buf, FormatJSON).WriteText(value, text); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kept": 2`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestWriter_Table(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(&buf, FormatText).Table("ID\tSize", []string{"a\t1 B", "longer-id\t2 B"})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if strings.Index(lines[0], "Size") != strings.Index(lines[2], "2 B") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
