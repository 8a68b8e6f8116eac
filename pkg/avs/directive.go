package avs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DirectiveSpeak                = "SpeechSynthesizer.Speak"
	DirectiveRenderDocument       = "Alexa.Presentation.APL.RenderDocument"
	DirectiveExecuteCommands      = "Alexa.Presentation.APL.ExecuteCommands"
	DirectiveCaptureDebuggingInfo = "SkillDebugger.CaptureDebuggingInfo"
	DirectiveDebuggerException    = "SkillDebugger.Exception"

	debugTypeConsideredIntents  = "ConsideredIntents"
	debugTypeSkillExecutionInfo = "SkillExecutionInfo"

	// ExceptionUnauthorizedDebugging means the turn was handled outside the skill under test.
	ExceptionUnauthorizedDebugging = "UNAUTHORIZED_DEBUGGING_INFO_ACCESS"

	directiveTag = `{"directive"`
)

// Directive is a cloud-to-device instruction.
type Directive struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// Identifier returns "namespace.name" with surrounding whitespace trimmed.
func (d Directive) Identifier() string {
	return strings.TrimSpace(d.Header.Namespace + "." + d.Header.Name)
}

// ParseJSONContent decodes a multipart JSON body into a directive. Bodies that do
// not start with the {"directive" tag are reported as not a directive.
func ParseJSONContent(body []byte) (Directive, bool) {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte(directiveTag)) {
		return Directive{}, false
	}
	var envelope struct {
		Directive Directive `json:"directive"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Directive{}, false
	}
	return envelope.Directive, true
}

// DirectivePayload is the decoded payload of a known directive.
type DirectivePayload interface {
	directiveID() string
}

// Caption is a Speak caption: either plain text or a typed WebVTT document.
type Caption struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"-"`
}

// UnmarshalJSON accepts both the string and the object caption shapes.
func (c *Caption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = Caption{}
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Caption{Text: text}
		return nil
	}
	type plain Caption
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = Caption(obj)
	return nil
}

// PlainText resolves the caption to displayable text.
func (c Caption) PlainText() (string, error) {
	if c.Text != "" {
		return c.Text, nil
	}
	if c.Content == "" {
		return "", nil
	}
	if strings.EqualFold(c.Type, "WEBVTT") || strings.HasPrefix(strings.TrimSpace(c.Content), "WEBVTT") {
		return ParseCaptionContent(c.Content)
	}
	return c.Content, nil
}

// SpeakPayload is SpeechSynthesizer.Speak.
type SpeakPayload struct {
	Caption Caption `json:"caption"`
	Token   string  `json:"token,omitempty"`
	Format  string  `json:"format,omitempty"`
	URL     string  `json:"url,omitempty"`
}

func (SpeakPayload) directiveID() string { return DirectiveSpeak }

// RenderDocumentPayload is Alexa.Presentation.APL.RenderDocument.
type RenderDocumentPayload struct {
	PresentationToken string          `json:"presentationToken"`
	Document          json.RawMessage `json:"document"`
	Datasources       json.RawMessage `json:"datasources"`
}

func (RenderDocumentPayload) directiveID() string { return DirectiveRenderDocument }

// ExecuteCommandsPayload is Alexa.Presentation.APL.ExecuteCommands.
type ExecuteCommandsPayload struct {
	PresentationToken string          `json:"presentationToken"`
	Commands          json.RawMessage `json:"commands"`
}

func (ExecuteCommandsPayload) directiveID() string { return DirectiveExecuteCommands }

// CaptureDebuggingInfoPayload is SkillDebugger.CaptureDebuggingInfo.
type CaptureDebuggingInfoPayload struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

func (CaptureDebuggingInfoPayload) directiveID() string { return DirectiveCaptureDebuggingInfo }

// ExceptionPayload is SkillDebugger.Exception.
type ExceptionPayload struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

func (ExceptionPayload) directiveID() string { return DirectiveDebuggerException }

// UnknownPayload carries a directive this device does not handle.
type UnknownPayload struct {
	ID  string
	Raw json.RawMessage
}

func (u UnknownPayload) directiveID() string { return u.ID }

// Decode resolves the payload variant by directive identifier.
func (d Directive) Decode() (DirectivePayload, error) {
	id := d.Identifier()
	var target DirectivePayload
	switch id {
	case DirectiveSpeak:
		var p SpeakPayload
		if err := unmarshalPayload(d.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		target = p
	case DirectiveRenderDocument:
		var p RenderDocumentPayload
		if err := unmarshalPayload(d.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		p.Document = nullAsUnset(p.Document)
		p.Datasources = nullAsUnset(p.Datasources)
		target = p
	case DirectiveExecuteCommands:
		var p ExecuteCommandsPayload
		if err := unmarshalPayload(d.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		p.Commands = nullAsUnset(p.Commands)
		target = p
	case DirectiveCaptureDebuggingInfo:
		var p CaptureDebuggingInfoPayload
		if err := unmarshalPayload(d.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		target = p
	case DirectiveDebuggerException:
		var p ExceptionPayload
		if err := unmarshalPayload(d.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		target = p
	default:
		target = UnknownPayload{ID: id, Raw: d.Payload}
	}
	return target, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// nullAsUnset maps an explicit JSON null to an unset value.
func nullAsUnset(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	return raw
}
