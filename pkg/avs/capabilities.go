package avs

import "encoding/json"

// SupportedLocales is the fixed locale list declared in the System capability.
var SupportedLocales = []string{
	"en-US", "en-GB", "en-IN", "en-CA", "en-AU",
	"de-DE", "es-ES", "es-MX", "es-US", "fr-FR",
	"fr-CA", "hi-IN", "it-IT", "ja-JP", "pt-BR",
}

type capabilityManifest struct {
	EnvelopeVersion string       `json:"envelopeVersion"`
	Capabilities    []capability `json:"capabilities"`
}

type capability struct {
	Type           string         `json:"type"`
	Interface      string         `json:"interface"`
	Version        string         `json:"version"`
	Configurations map[string]any `json:"configurations,omitempty"`
}

func newCapabilityManifest() capabilityManifest {
	return capabilityManifest{
		EnvelopeVersion: "20160207",
		Capabilities: []capability{
			{Type: "AlexaInterface", Interface: NamespaceSkillDebugger, Version: "1.0"},
			{
				Type:      "AlexaInterface",
				Interface: NamespaceAPL,
				Version:   "1.0",
				Configurations: map[string]any{
					"runtime": map[string]any{"maxVersion": "1.5"},
				},
			},
			{Type: "AlexaInterface", Interface: NamespaceSpeechSynthesizer, Version: "1.3"},
			{
				Type:      "AlexaInterface",
				Interface: NamespaceSystem,
				Version:   "1.0",
				Configurations: map[string]any{
					"locales": SupportedLocales,
				},
			},
			{Type: "AlexaInterface", Interface: "Alexa.Presentation", Version: "1.0"},
		},
	}
}

// CapabilityManifest returns the JSON body PUT to the capabilities endpoint.
func CapabilityManifest() ([]byte, error) {
	return json.Marshal(newCapabilityManifest())
}
