package handoff

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/adamancini/updraft/internal/update"
)

func sampleDescriptor() *Descriptor {
	return &Descriptor{
		SchemaVersion:      SchemaVersion,
		ArtifactPath:       "/var/cache/updraft/downloads/notes-2.0.0.zip",
		TargetPath:         "/opt/notes/notes",
		OriginPID:          4242,
		RestartAfterUpdate: true,
		ArtifactType:       "archive",
		BackupDirectory:    "/var/cache/updraft/backups/2024-01-01-000000-2.0.0",
		ExitTimeoutSeconds: 45,
		AllowForceKill:     true,
		RestartArguments:   `--profile "work notes" --minimized`,
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleDescriptor()

	path, err := Write(dir, want)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Write() path = %s, want it under %s", path, dir)
	}
	if strings.HasSuffix(path, ".tmp") {
		t.Errorf("Write() returned the temporary path %s", path)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %+v, want %+v", got, want)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("handoff dir has %d entries, want 1", len(entries))
	}
}

func TestWrite_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	first, err := Write(dir, sampleDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Write(dir, sampleDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("Write() reused %s", first)
	}
}

func TestWrite_DefaultsSchemaVersion(t *testing.T) {
	d := sampleDescriptor()
	d.SchemaVersion = 0

	path, err := Write(t.TempDir(), d)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"schemaVersion": 1`) {
		t.Errorf("descriptor = %s, want schemaVersion 1", data)
	}
}

func TestWrite_Invalid(t *testing.T) {
	d := sampleDescriptor()
	d.ArtifactPath = ""

	if _, err := Write(t.TempDir(), d); !errors.Is(err, update.ErrValidation) {
		t.Errorf("Write() error = %v, want ErrValidation", err)
	}
	if _, err := Write(t.TempDir(), nil); !errors.Is(err, update.ErrValidation) {
		t.Errorf("Write(nil) error = %v, want ErrValidation", err)
	}
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "missing", path: filepath.Join(dir, "missing.json"), wantErr: update.ErrNotFound},
		{name: "empty path", path: "", wantErr: update.ErrValidation},
		{name: "malformed", path: write("bad.json", "{not json"), wantErr: update.ErrValidation},
		{name: "missing fields", path: write("empty.json", `{"schemaVersion": 1}`), wantErr: update.ErrValidation},
		{name: "future schema", path: write("future.json", `{"schemaVersion": 99, "artifactPath": "a", "targetPath": "b"}`), wantErr: update.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(tt.path); !errors.Is(err, tt.wantErr) {
				t.Errorf("Read() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	path, err := Write(t.TempDir(), sampleDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Remove() left the file")
	}
	if err := Remove(path); err != nil {
		t.Errorf("Remove() second call error = %v", err)
	}
}

func TestDescriptorRestartArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "--minimized", want: []string{"--minimized"}},
		{in: `--profile "work notes" -v`, want: []string{"--profile", "work notes", "-v"}},
		{in: `--name 'unterminated`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := (&Descriptor{RestartArguments: tt.in}).RestartArgs()
			if (err != nil) != tt.wantErr {
				t.Fatalf("RestartArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RestartArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptorExitTimeout(t *testing.T) {
	d := &Descriptor{ExitTimeoutSeconds: 30}
	if d.ExitTimeout() != 30*time.Second {
		t.Errorf("ExitTimeout() = %v", d.ExitTimeout())
	}
}
