package cracker

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// HTMLCracker strips markup with the x/net/html tokenizer, emitting the
// page's text content plus a title metadata field pulled from <title>.
// Script and style bodies are dropped rather than included as text.
type HTMLCracker struct{}

func (h *HTMLCracker) CanHandle(contentType, extension string) bool {
	switch strings.ToLower(extension) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.HasPrefix(contentType, "text/html") || strings.HasPrefix(contentType, "application/xhtml+xml")
}

func (h *HTMLCracker) Crack(content []byte, fileName, contentType string) (*CrackedDocument, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(string(content)))
	var text strings.Builder
	var title string
	var warnings []string
	inTitle := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && err.Error() != "EOF" {
				warnings = append(warnings, "html parse: "+err.Error())
			}
			return h.finish(text.String(), title, warnings), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = true
			}
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = false
			}
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			raw := strings.TrimSpace(string(tokenizer.Text()))
			if raw == "" {
				continue
			}
			if inTitle {
				title = raw
				continue
			}
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(raw)
		}
	}
}

func (h *HTMLCracker) finish(content, title string, warnings []string) *CrackedDocument {
	meta := map[string]string{}
	if title != "" {
		meta["title"] = title
	}
	return &CrackedDocument{
		Content:        content,
		Title:          title,
		WordCount:      len(strings.Fields(content)),
		CharacterCount: utf8.RuneCountInString(content),
		Metadata:       meta,
		Warnings:       warnings,
	}
}
