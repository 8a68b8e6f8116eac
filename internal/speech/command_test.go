package speech

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSubstituteKeepsArgumentsWhole(t *testing.T) {
	got := substitute([]string{"say", "-o", "{out}", "{text}"}, map[string]string{
		"{text}": "open my skill",
		"{out}":  "/tmp/a.wav",
	})
	want := []string{"say", "-o", "/tmp/a.wav", "open my skill"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%v, want %v", got, want)
	}
}

func TestNewCommandGeneratorValidation(t *testing.T) {
	if _, err := NewCommandGenerator("", "", nil); err == nil {
		t.Fatal("NewCommandGenerator(empty) error=nil, want non-nil")
	}
	if _, err := NewCommandGenerator("espeak-ng {text}", "", nil); err == nil {
		t.Fatal("NewCommandGenerator(no out) error=nil, want non-nil")
	}
}

func TestCommandGeneratorRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	gen, err := NewCommandGenerator("cp "+src+" {out}", dir, nil)
	if err != nil {
		t.Fatalf("NewCommandGenerator returned error: %v", err)
	}
	path, err := gen.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("output=%q,%v, want RIFF", data, err)
	}
}

func TestCommandPlayerAppendsFile(t *testing.T) {
	p, err := NewCommandPlayer("mpg123 -q", nil)
	if err != nil {
		t.Fatalf("NewCommandPlayer returned error: %v", err)
	}
	want := []string{"mpg123", "-q", "{file}"}
	if !reflect.DeepEqual(p.command, want) {
		t.Fatalf("command=%v, want %v", p.command, want)
	}
}

func TestCommandPlayerReportsFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	p, err := NewCommandPlayer("false {file}", nil)
	if err != nil {
		t.Fatalf("NewCommandPlayer returned error: %v", err)
	}
	if err := p.Play(context.Background(), "x.mp3"); err == nil {
		t.Fatal("Play error=nil, want non-nil")
	}
}
