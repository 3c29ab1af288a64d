// Package parser splits a Markdown file into YAML frontmatter and body and
// derives the note title. Inline syntax is handled by the render pipeline.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, frontmatter tags and title from raw
// Markdown bytes. It never fails on malformed frontmatter: the whole file is
// treated as body instead.
func Parse(data []byte) (*Result, error) {
	fm, body := SplitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        FrontmatterTags(fm),
		Title:       DeriveTitle(fm, body),
	}, nil
}

// SplitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func SplitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	// The opening fence must be alone on its line.
	if nl := bytes.IndexByte(rest, '\n'); nl < 0 || len(bytes.TrimSpace(rest[:nl])) > 0 {
		return nil, string(data)
	}
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\r\n")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}

	return fm, body
}

// FrontmatterTags returns the "tags" (or "tag") field as a deduplicated list.
// Both YAML lists and comma/space separated strings are accepted, and a
// leading '#' is dropped.
func FrontmatterTags(fm map[string]interface{}) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"]
	if !ok {
		raw, ok = fm["tag"]
	}
	if !ok {
		return nil
	}

	var items []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}

	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, s := range items {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// DeriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func DeriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
