package store

import (
	"time"

	"receipt-ocr/api/internal/ocr"
	"receipt-ocr/api/internal/util"
)

// Outcome builds the journal row for one finished extraction.
func Outcome(source string, eng ocr.Engine, img []byte, mime, prompt string, err error, took time.Duration) *Extraction {
	e := &Extraction{
		Source:      source,
		Engine:      eng.Name(),
		Model:       eng.GetModel(),
		ImageSHA256: util.SHA256Hex(img),
		MIMEType:    mime,
		ImageBytes:  len(img),
		PromptChars: len([]rune(prompt)),
		Kind:        ocr.KindOf(err).String(),
		DurationMS:  took.Milliseconds(),
	}
	if e.MIMEType == "" {
		e.MIMEType = ocr.DefaultMIMEType
	}
	if oe := ocr.Classify(err); oe != nil {
		e.StatusCode = oe.StatusCode
	}
	return e
}
