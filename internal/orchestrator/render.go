package orchestrator

import "github.com/demomirror/crawler/internal/renderer"

// rendererAdapter adapts *renderer.Renderer to renderClient, translating
// renderer.RenderResult into the narrower shape the orchestrator reads.
type rendererAdapter struct {
	r *renderer.Renderer
}

// NewRendererClient wraps a renderer.Renderer for use with New.
func NewRendererClient(r *renderer.Renderer) renderClient {
	if r == nil {
		return nil
	}
	return &rendererAdapter{r: r}
}

func (a *rendererAdapter) Render(urlStr string) *renderResult {
	rr := a.r.Render(urlStr)
	return &renderResult{
		HTML:       rr.HTML,
		FinalURL:   rr.FinalURL,
		Title:      rr.Title,
		StatusCode: rr.StatusCode,
		Error:      rr.Error,
	}
}
