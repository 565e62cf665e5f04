package models

import "github.com/tmc/langchaingo/schema"

// Metadata keys set by the loader and carried into every chunk.
const (
	MetaSource   = "source"
	MetaTitle    = "title"
	MetaSelector = "selector"
)

// Document is the unit passed between loader, splitter and vector store.
type Document = schema.Document

// State is the per-question record threaded through the pipeline stages.
// Context stays nil until the retrieve stage has run.
type State struct {
	Question string     `json:"question"`
	Context  []Document `json:"context"`
	Answer   string     `json:"answer"`
}

// ContextText joins the page content of every retrieved chunk with newlines.
func (s State) ContextText() string {
	n := 0
	for _, d := range s.Context {
		n += len(d.PageContent) + 1
	}
	buf := make([]byte, 0, n)
	for i, d := range s.Context {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, d.PageContent...)
	}
	return string(buf)
}
