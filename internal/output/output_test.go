package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sample struct {
	AlexaResponse []string        `json:"alexaResponse"`
	Documents     json.RawMessage `json:"documents,omitempty"`
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	v := sample{AlexaResponse: []string{"Hello"}, Documents: json.RawMessage(`{"type":"APL","version":"1.5"}`)}
	if err := Render(&buf, FormatYAML, v); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"alexaResponse:", "- Hello", "documents:", "type: APL", `version: "1.5"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output=%q, want it to contain %q", out, want)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, FormatJSON, sample{AlexaResponse: []string{}}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "{\n  \"alexaResponse\": []\n}" {
		t.Fatalf("output=%q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatYAML},
		{in: "YAML", want: FormatYAML},
		{in: "json", want: FormatJSON},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFormat(%q) error=%v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseFormat(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}
