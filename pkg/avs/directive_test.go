package avs

import (
	"testing"
)

func TestParseJSONContent(t *testing.T) {
	d, ok := ParseJSONContent([]byte("  \n" + `{"directive":{"header":{"namespace":"SpeechSynthesizer","name":"Speak "},"payload":{}}}`))
	if !ok {
		t.Fatal("ParseJSONContent ok=false, want true")
	}
	if got := d.Identifier(); got != "SpeechSynthesizer.Speak" {
		t.Fatalf("Identifier=%q, want %q", got, "SpeechSynthesizer.Speak")
	}

	if _, ok := ParseJSONContent([]byte(`{"event":{}}`)); ok {
		t.Fatal("ParseJSONContent(non-directive) ok=true, want false")
	}
	if _, ok := ParseJSONContent([]byte(`{"directive":`)); ok {
		t.Fatal("ParseJSONContent(truncated) ok=true, want false")
	}
}

func TestDecodeSpeakCaptionShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "string", payload: `{"caption":"hello","token":"t1"}`, want: "hello"},
		{
			name:    "webvtt",
			payload: `{"caption":{"type":"WEBVTT","content":"WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.000\nHi\n\n2\n00:00:01.000 --> 00:00:02.000\nthere\n"}}`,
			want:    "Hi there",
		},
		{name: "missing", payload: `{"token":"t1"}`, want: ""},
	}
	for _, tt := range tests {
		d := Directive{Header: Header{Namespace: "SpeechSynthesizer", Name: "Speak"}, Payload: []byte(tt.payload)}
		payload, err := d.Decode()
		if err != nil {
			t.Fatalf("%s: Decode returned error: %v", tt.name, err)
		}
		speak, ok := payload.(SpeakPayload)
		if !ok {
			t.Fatalf("%s: payload=%T, want SpeakPayload", tt.name, payload)
		}
		got, err := speak.Caption.PlainText()
		if err != nil {
			t.Fatalf("%s: PlainText returned error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: text=%q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecodeRenderDocumentNulls(t *testing.T) {
	d := Directive{
		Header:  Header{Namespace: NamespaceAPL, Name: "RenderDocument"},
		Payload: []byte(`{"presentationToken":"p1","document":null,"datasources":null}`),
	}
	payload, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	render := payload.(RenderDocumentPayload)
	if render.Document != nil || render.Datasources != nil {
		t.Fatalf("document=%s datasources=%s, want both unset", render.Document, render.Datasources)
	}
	if render.PresentationToken != "p1" {
		t.Fatalf("presentationToken=%q, want p1", render.PresentationToken)
	}
}

func TestDecodeUnknownDirective(t *testing.T) {
	d := Directive{Header: Header{Namespace: "Alerts", Name: "SetAlert"}, Payload: []byte(`{"x":1}`)}
	payload, err := d.Decode()
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	unknown, ok := payload.(UnknownPayload)
	if !ok {
		t.Fatalf("payload=%T, want UnknownPayload", payload)
	}
	if unknown.ID != "Alerts.SetAlert" {
		t.Fatalf("ID=%q, want Alerts.SetAlert", unknown.ID)
	}
}

func TestParseCaptionContent(t *testing.T) {
	got, err := ParseCaptionContent("WEBVTT\n\n00:00:00.000 --> 00:00:01.500\nHi\n\n00:00:01.500 --> 00:00:03.000\nthere\n")
	if err != nil {
		t.Fatalf("ParseCaptionContent returned error: %v", err)
	}
	if got != "Hi there" {
		t.Fatalf("ParseCaptionContent=%q, want %q", got, "Hi there")
	}
	if got, err := ParseCaptionContent("  "); err != nil || got != "" {
		t.Fatalf("ParseCaptionContent(blank)=%q,%v, want empty,nil", got, err)
	}
}
