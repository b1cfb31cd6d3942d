package cracker

import (
	"strings"
	"unicode/utf8"
)

// PlainCracker handles plain text formats: invalid UTF-8 is replaced rather
// than rejected (grounded on the teacher's extractPlain), and content is
// additionally summarized with word/character counts.
type PlainCracker struct{}

func (p *PlainCracker) CanHandle(contentType, extension string) bool {
	switch strings.ToLower(extension) {
	case ".txt", ".md", ".rst", ".csv", ".json", ".log", "":
		return true
	}
	switch {
	case strings.HasPrefix(contentType, "text/plain"),
		strings.HasPrefix(contentType, "text/markdown"),
		strings.HasPrefix(contentType, "text/csv"),
		strings.HasPrefix(contentType, "application/json"):
		return true
	}
	return false
}

func (p *PlainCracker) Crack(content []byte, fileName, contentType string) (*CrackedDocument, error) {
	text := content
	if !utf8.Valid(text) {
		text = []byte(strings.ToValidUTF8(string(text), "�"))
	}
	s := string(text)
	return &CrackedDocument{
		Content:        s,
		WordCount:      len(strings.Fields(s)),
		CharacterCount: utf8.RuneCountInString(s),
		Metadata:       map[string]string{},
	}, nil
}
