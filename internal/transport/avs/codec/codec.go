package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

const (
	// Boundary is the fixed multipart boundary used for outbound events.
	Boundary = "simple-avs-message-boundary"

	// ContentTypeJSON is the metadata part content type.
	ContentTypeJSON = "application/json; charset=UTF-8"
	// ContentTypeAudio is the audio part content type.
	ContentTypeAudio = "application/octet-stream"
)

// PartKind describes the decoded part category.
type PartKind int

const (
	// PartKindOther indicates a part with an unrecognized content type.
	PartKindOther PartKind = iota
	// PartKindJSON indicates a JSON directive part.
	PartKindJSON
	// PartKindBinary indicates an octet-stream (audio) part.
	PartKindBinary
)

// Part is one decoded multipart section.
type Part struct {
	Header textproto.MIMEHeader
	Body   []byte
}

// Kind classifies the part by its Content-Type header.
func (p Part) Kind() PartKind {
	mediaType, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
	if err != nil {
		return PartKindOther
	}
	switch mediaType {
	case "application/json":
		return PartKindJSON
	case "application/octet-stream":
		return PartKindBinary
	default:
		return PartKindOther
	}
}

// ContentID returns the part Content-ID without angle brackets.
func (p Part) ContentID() string {
	return strings.Trim(p.Header.Get("Content-Id"), "<> ")
}

// FormDataContentType returns the request Content-Type for packed bodies.
func FormDataContentType() string {
	return "multipart/form-data; boundary=" + Boundary
}

// Pack frames the JSON metadata and optional audio into a multipart/form-data body.
func Pack(metadata []byte, audio []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(Boundary); err != nil {
		return nil, err
	}

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Disposition", `form-data; name="metadata"`)
	metaHeader.Set("Content-Type", ContentTypeJSON)
	part, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := part.Write(metadata); err != nil {
		return nil, fmt.Errorf("write metadata part: %w", err)
	}

	if audio != nil {
		audioHeader := textproto.MIMEHeader{}
		audioHeader.Set("Content-Disposition", `form-data; name="audio"`)
		audioHeader.Set("Content-Type", ContentTypeAudio)
		part, err := writer.CreatePart(audioHeader)
		if err != nil {
			return nil, fmt.Errorf("create audio part: %w", err)
		}
		if _, err := part.Write(audio); err != nil {
			return nil, fmt.Errorf("write audio part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses every complete part of a multipart buffer. A buffer cut off in the
// middle of a part (an open stream) yields the parts completed so far.
func Decode(buf []byte, boundary string) ([]Part, error) {
	if boundary == "" {
		return nil, errors.New("avs multipart boundary is empty")
	}
	if len(buf) == 0 {
		return nil, nil
	}

	reader := multipart.NewReader(bytes.NewReader(buf), boundary)
	parts := []Part{}
	for {
		p, err := reader.NextRawPart()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return parts, nil
			}
			if len(parts) > 0 {
				return parts, nil
			}
			return nil, fmt.Errorf("avs multipart next part: %w", err)
		}
		body, err := io.ReadAll(p)
		_ = p.Close()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return parts, nil
			}
			return parts, fmt.Errorf("avs multipart read part: %w", err)
		}
		parts = append(parts, Part{Header: p.Header, Body: body})
	}
}

// BoundaryFromContentType extracts the boundary parameter of a multipart Content-Type.
// AVS sends an unquoted type=application/json parameter that strict MIME parsing
// rejects, so the parameters are scanned by hand when that happens.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return "", fmt.Errorf("avs content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("avs content type %q is not multipart", contentType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		boundary = scanParam(contentType, "boundary")
	}
	if boundary == "" {
		return "", fmt.Errorf("avs content type %q has no boundary", contentType)
	}
	return boundary, nil
}

func scanParam(contentType string, name string) string {
	for _, field := range strings.Split(contentType, ";")[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), name) {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`)
	}
	return ""
}

// SniffBoundary reads the boundary from the first delimiter line of a buffer.
func SniffBoundary(buf []byte) string {
	trimmed := bytes.TrimLeft(buf, "\r\n")
	if !bytes.HasPrefix(trimmed, []byte("--")) {
		return ""
	}
	line := trimmed[2:]
	if idx := bytes.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	} else {
		return ""
	}
	return strings.TrimSpace(string(line))
}
