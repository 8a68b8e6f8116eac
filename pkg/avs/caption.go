package avs

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astisub"
)

// ParseCaptionContent extracts the cue texts of a WebVTT document joined by a
// single space.
func ParseCaptionContent(webvtt string) (string, error) {
	if strings.TrimSpace(webvtt) == "" {
		return "", nil
	}
	subs, err := astisub.ReadFromWebVTT(strings.NewReader(webvtt))
	if err != nil {
		return "", fmt.Errorf("parse webvtt caption: %w", err)
	}
	texts := make([]string, 0, len(subs.Items))
	for _, item := range subs.Items {
		for _, line := range item.Lines {
			for _, li := range line.Items {
				if text := strings.TrimSpace(li.Text); text != "" {
					texts = append(texts, text)
				}
			}
		}
	}
	return strings.Join(texts, " "), nil
}
