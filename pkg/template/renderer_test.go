package template

import (
	"errors"
	"testing"
)

func TestMapRenderer_Render(t *testing.T) {
	r := NewMapRenderer()
	r.Register("greeting", "Hello {{name}}, welcome to {{place}}!")

	out, err := r.Render("greeting", map[string]string{
		"name":  "Ada",
		"place": "the library",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "Hello Ada, welcome to the library!" {
		t.Errorf("Render() = %q", out)
	}
}

func TestMapRenderer_UnknownTemplate(t *testing.T) {
	r := NewMapRenderer()

	_, err := r.Render("missing", nil)
	if err == nil {
		t.Fatal("Render() of an unregistered template should fail")
	}

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("error type = %T, want *RenderError", err)
	}
	if renderErr.TemplateRef != "missing" {
		t.Errorf("TemplateRef = %s, want missing", renderErr.TemplateRef)
	}
}

func TestMapRenderer_LongerNamesSubstituteFirst(t *testing.T) {
	r := NewMapRenderer()
	r.Register("tricky", "{{title}} vs {{t}}")

	out, err := r.Render("tricky", map[string]string{
		"t":     "short",
		"title": "long",
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "long vs short" {
		t.Errorf("Render() = %q, want %q", out, "long vs short")
	}
}

func TestMapRenderer_ReplacesExistingTemplate(t *testing.T) {
	r := NewMapRenderer()
	r.Register("v", "one")
	r.Register("v", "two")

	out, err := r.Render("v", nil)
	if err != nil || out != "two" {
		t.Errorf("Render() = %q, %v, want two", out, err)
	}
}
