package ocr

import "strings"

const (
	// DefaultPrompt is sent when the caller supplies no instruction.
	DefaultPrompt = "Extract all text from this image."
	// DefaultMIMEType labels the image when the caller asserts no type.
	DefaultMIMEType = "image/jpeg"
)

// Request is a single extraction call: one image, one instruction.
type Request struct {
	ImageB64 string `json:"image_b64"` // standard base64, no data: prefix
	MIMEType string `json:"mime,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// WithDefaults fills the prompt and mime label when they are blank.
func (r Request) WithDefaults() Request {
	if strings.TrimSpace(r.Prompt) == "" {
		r.Prompt = DefaultPrompt
	}
	if strings.TrimSpace(r.MIMEType) == "" {
		r.MIMEType = DefaultMIMEType
	}
	return r
}

// Result is the text returned by the model, passed through verbatim.
type Result struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
	Model  string `json:"model"`
}
