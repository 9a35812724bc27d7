package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/contentcoreio/contentcore/pkg/content"
)

const (
	maxTitleLength    = 200
	maxBodyLength     = 100_000
	maxMetadataSize   = 50
	maxKeywords       = 50
	minKeywordLength  = 4 // Tokens longer than 3 characters
	maxSummaryLength  = 200
	summaryEllipsis   = "..."
	templateRefKey    = "template"
	keywordsMetaKey   = "keywords"
	summaryMetaKey    = "summary"
	indexedAtMetaKey  = "indexedAt"
	publishedAtKey    = "publishedAt"
	processingIDKey   = "processingId"
)

var (
	scriptTagRe    = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	scriptOpenRe   = regexp.MustCompile(`(?i)<\s*/?\s*script\b[^>]*>`)
	javascriptURIRe = regexp.MustCompile(`(?i)javascript\s*:[^\s"'<>]*`)
	eventAttrRe    = regexp.MustCompile(`(?i)\bon\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	tokenSplitRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// validate runs the structural checks as parallel sub-tasks; every
// check must pass. Fans out in-stage goroutines rather than pool
// submissions so a small CPU pool cannot starve its own stage.
func (p *Pipeline) validate(ctx context.Context, rec *content.Record) (*content.Record, error) {
	checks := []func(*content.Record) error{
		checkTitle,
		checkBody,
		checkMarkup,
		checkMetadata,
	}

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(idx int, fn func(*content.Record) error) {
			defer wg.Done()
			errs[idx] = fn(rec)
		}(i, check)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func checkTitle(rec *content.Record) error {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if utf8.RuneCountInString(rec.Title) > maxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("title exceeds %d characters", maxTitleLength)}
	}
	return nil
}

func checkBody(rec *content.Record) error {
	if strings.TrimSpace(rec.Body) == "" {
		return &ValidationError{Field: "body", Reason: "body is required"}
	}
	if utf8.RuneCountInString(rec.Body) > maxBodyLength {
		return &ValidationError{Field: "body", Reason: fmt.Sprintf("body exceeds %d characters", maxBodyLength)}
	}
	return nil
}

func checkMarkup(rec *content.Record) error {
	if scriptOpenRe.MatchString(rec.Title) {
		return &ValidationError{Field: "title", Reason: "title contains disallowed markup"}
	}
	if scriptOpenRe.MatchString(rec.Body) {
		return &ValidationError{Field: "body", Reason: "body contains disallowed markup"}
	}
	return nil
}

func checkMetadata(rec *content.Record) error {
	if len(rec.Metadata) > maxMetadataSize {
		return &ValidationError{Field: "metadata", Reason: fmt.Sprintf("metadata exceeds %d entries", maxMetadataSize)}
	}
	return nil
}

// sanitize strips script tags, javascript: URIs and inline event
// handler attributes from title and body, and drops metadata entries
// whose value is blank after stripping.
func (p *Pipeline) sanitize(ctx context.Context, rec *content.Record) (*content.Record, error) {
	rec.Title = sanitizeText(rec.Title)
	rec.Body = sanitizeText(rec.Body)

	for key, value := range rec.Metadata {
		cleaned := strings.TrimSpace(sanitizeText(value))
		if cleaned == "" {
			delete(rec.Metadata, key)
			continue
		}
		rec.Metadata[key] = cleaned
	}
	return rec, nil
}

func sanitizeText(text string) string {
	text = scriptTagRe.ReplaceAllString(text, "")
	text = scriptOpenRe.ReplaceAllString(text, "")
	text = javascriptURIRe.ReplaceAllString(text, "")
	text = eventAttrRe.ReplaceAllString(text, "")
	return text
}

// transform renders the record's template reference, if any, through
// the Renderer collaborator, then collapses repeated whitespace in
// the body and trims the title.
func (p *Pipeline) transform(ctx context.Context, rec *content.Record) (*content.Record, error) {
	if templateRef := rec.Meta(templateRefKey); templateRef != "" {
		if p.renderer == nil {
			return nil, &StageError{Stage: content.StageTransform, Err: fmt.Errorf("no template renderer configured")}
		}
		variables := map[string]string{
			"title":   rec.Title,
			"body":    rec.Body,
			"created": rec.CreatedAt.Format(time.RFC3339),
		}
		rendered, err := p.renderer.Render(templateRef, variables)
		if err != nil {
			return nil, &StageError{Stage: content.StageTransform, Err: err}
		}
		rec.Body = rendered
	}

	rec.Body = whitespaceRe.ReplaceAllString(rec.Body, " ")
	rec.Title = strings.TrimSpace(rec.Title)
	return rec, nil
}

// index extracts keywords and a summary and stamps the index time.
func (p *Pipeline) index(ctx context.Context, rec *content.Record) (*content.Record, error) {
	keywords := extractKeywords(rec.Title + " " + rec.Body)
	rec.SetMeta(keywordsMetaKey, strings.Join(keywords, ","))
	rec.SetMeta(summaryMetaKey, summarize(rec.Body))
	rec.SetMeta(indexedAtMetaKey, time.Now().Format(time.RFC3339))
	return rec, nil
}

// extractKeywords returns up to maxKeywords distinct lowercase tokens
// longer than 3 characters, in order of first appearance.
func extractKeywords(text string) []string {
	tokens := tokenSplitRe.Split(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, maxKeywords)
	keywords := make([]string, 0, maxKeywords)
	for _, token := range tokens {
		if len(token) < minKeywordLength {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// summarize truncates body to maxSummaryLength characters at the
// nearest preceding word boundary, appending an ellipsis when
// truncated. The cut always lands on a rune boundary.
func summarize(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= maxSummaryLength {
		return body
	}

	cut := maxSummaryLength - len(summaryEllipsis)
	truncated := string(runes[:cut])
	if idx := strings.LastIndexByte(truncated, ' '); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + summaryEllipsis
}

// publish marks the record published and stamps publish metadata.
func (p *Pipeline) publish(ctx context.Context, rec *content.Record, processingID string) (*content.Record, error) {
	rec.Status = content.StatusPublished
	rec.SetMeta(publishedAtKey, time.Now().Format(time.RFC3339))
	rec.SetMeta(processingIDKey, processingID)
	rec.UpdatedAt = time.Now()
	return rec, nil
}
