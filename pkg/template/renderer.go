// Package template defines the template-rendering collaborator
// consumed by the pipeline's transform stage.
package template

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RenderError reports a failed render. The transform stage converts
// it into a stage failure.
type RenderError struct {
	TemplateRef string
	Err         error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render template %s: %v", e.TemplateRef, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer renders a registered template with the given variables.
type Renderer interface {
	Render(templateRef string, variables map[string]string) (string, error)
}

// MapRenderer is a Renderer backed by an in-memory template registry.
// Placeholders use {{name}} syntax. Used by tests and the demo; a
// real deployment injects its own Renderer.
type MapRenderer struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewMapRenderer creates an empty registry.
func NewMapRenderer() *MapRenderer {
	return &MapRenderer{
		templates: make(map[string]string),
	}
}

// Register adds or replaces a template.
func (r *MapRenderer) Register(ref, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[ref] = body
}

// Render implements Renderer.
func (r *MapRenderer) Render(templateRef string, variables map[string]string) (string, error) {
	r.mu.RLock()
	body, ok := r.templates[templateRef]
	r.mu.RUnlock()

	if !ok {
		return "", &RenderError{TemplateRef: templateRef, Err: fmt.Errorf("template not found")}
	}

	// Longer names first so {{title}} is not clipped by a {{t}} variable.
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	rendered := body
	for _, name := range names {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", variables[name])
	}
	return rendered, nil
}
