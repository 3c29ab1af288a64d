package embed

import (
	"strings"

	"github.com/starford/vaultview/internal/models"
)

// Extract replaces mermaid and gpx/kml fenced blocks in raw Markdown with
// placeholder tokens and returns the rewritten text together with one
// placeholder per replaced block, in document order.
//
// Mermaid blocks are extracted first and track blocks second. Fences of any
// other language are skipped as a whole, so a mermaid example inside a
// ````markdown block stays literal. An unterminated fence is left untouched.
func Extract(text string, ids *IDs) (string, []models.Placeholder) {
	text, diagrams := extractFences(text, ids, pickMermaid)
	text, tracks := extractFences(text, ids, pickTrack)
	return text, append(diagrams, tracks...)
}

// picker decides whether a fenced block with the given info string and body
// becomes a placeholder. The returned placeholder has no ID yet.
type picker func(info, body string, hasBody bool) (models.Placeholder, bool)

func pickMermaid(info, body string, hasBody bool) (models.Placeholder, bool) {
	if !strings.EqualFold(firstField(info), "mermaid") {
		return models.Placeholder{}, false
	}
	return models.Placeholder{Kind: models.PlaceholderMermaid, Code: body}, true
}

func pickTrack(info, body string, hasBody bool) (models.Placeholder, bool) {
	lang := firstField(info)
	lower := strings.ToLower(lang)

	for _, kind := range []models.FileKind{models.FileKindGPX, models.FileKindKML} {
		prefix := string(kind) + ":"
		switch {
		case lower == string(kind):
			if !hasBody {
				return models.Placeholder{}, false
			}
			return models.Placeholder{Kind: models.PlaceholderTrack, Code: body, FileKind: kind}, true
		case strings.HasPrefix(strings.ToLower(info), prefix):
			if hasBody {
				return models.Placeholder{}, false
			}
			path := strings.TrimSpace(info[len(prefix):])
			if path == "" {
				return models.Placeholder{}, false
			}
			return models.Placeholder{
				Kind:            models.PlaceholderTrack,
				Code:            path,
				IsFileReference: true,
				FileKind:        kind,
			}, true
		}
	}
	return models.Placeholder{}, false
}

func extractFences(text string, ids *IDs, pick picker) (string, []models.Placeholder) {
	lines := strings.SplitAfter(text, "\n")
	var (
		out          strings.Builder
		placeholders []models.Placeholder
	)
	out.Grow(len(text))

	// The token keeps the opener's indentation so that a fence inside a list
	// item stays in that item.
	emit := func(p models.Placeholder, f fence) {
		p.ID = ids.Next(p.Kind)
		placeholders = append(placeholders, p)
		out.WriteString("\n" + strings.Repeat(" ", f.indent) + p.ID + "\n\n")
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		f, ok := openFence(line)
		if !ok {
			out.WriteString(line)
			continue
		}

		if info, ok := f.singleLine(); ok {
			if p, ok := pick(info, "", false); ok {
				emit(p, f)
			} else {
				out.WriteString(line)
			}
			continue
		}

		end := -1
		for j := i + 1; j < len(lines); j++ {
			if f.closedBy(lines[j]) {
				end = j
				break
			}
		}
		if end < 0 {
			// Unterminated: the fence runs to the end of the document.
			for _, rest := range lines[i:] {
				out.WriteString(rest)
			}
			break
		}

		body := f.body(lines[i+1 : end])
		p, ok := pick(f.info, body, strings.TrimSpace(body) != "")
		if !ok {
			for _, keep := range lines[i : end+1] {
				out.WriteString(keep)
			}
		} else {
			emit(p, f)
		}
		i = end
	}
	return out.String(), placeholders
}

type fence struct {
	indent int
	char   byte
	length int
	info   string
}

// openFence recognises a fenced code block opener: up to three spaces of
// indentation followed by at least three backticks or tildes.
func openFence(line string) (fence, bool) {
	line = strings.TrimRight(line, "\r\n")
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent > 3 || indent >= len(line) {
		return fence{}, false
	}
	c := line[indent]
	if c != '`' && c != '~' {
		return fence{}, false
	}
	n := 0
	for indent+n < len(line) && line[indent+n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	return fence{
		indent: indent,
		char:   c,
		length: n,
		info:   strings.TrimSpace(line[indent+n:]),
	}, true
}

// singleLine reports whether the opener also closes on the same line
// (```gpx:track.gpx```). Backtick info strings cannot contain backticks, so
// a trailing run is always a closer.
func (f fence) singleLine() (string, bool) {
	if f.char != '`' || !strings.HasSuffix(f.info, "```") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimRight(f.info, "`")), true
}

func (f fence) closedBy(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return false
	}
	n := 0
	for indent+n < len(line) && line[indent+n] == f.char {
		n++
	}
	return n >= f.length && strings.TrimSpace(line[indent+n:]) == ""
}

// body joins content lines, removing up to the opener's indentation from each.
func (f fence) body(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		strip := 0
		for strip < f.indent && strip < len(l) && l[strip] == ' ' {
			strip++
		}
		b.WriteString(strings.TrimRight(l[strip:], "\r\n"))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
