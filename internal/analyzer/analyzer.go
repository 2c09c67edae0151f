// Package analyzer is the pipeline's boundary to the multimodal inference
// capability. It templates the prompt and moves bytes; it never interprets
// the response.
package analyzer

import "context"

// Service is the capability interface the pipeline depends on.
// Implementations must bound their wait and return a typed failure
// (common.ErrAnalyzerUnavailable / common.ErrAnalyzerTimeout) rather than
// blocking; retry policy belongs to the caller.
type Service interface {
	Infer(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// Request carries what the analyzer needs for one document.
type Request struct {
	Image    []byte
	MIMEType string
	OCRText  string
}
