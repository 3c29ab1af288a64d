package embed

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/vaultview/internal/models"
)

// Attribute names of the track marker element written by the render pipeline.
const (
	AttrTrackType = "data-track-type"
	AttrTrackURL  = "data-track-url"
	AttrEmbedID   = "data-embed-id"
)

// Reconcile replaces every track marker element in rendered HTML with a fresh
// TRACK_PLACEHOLDER_EMBED_<n> token and returns one file-reference placeholder
// per marker. baseURL is stripped from the marker URL so that Code holds a
// vault-relative path.
//
// Everything that is not a marker is copied through byte for byte.
func Reconcile(src, baseURL string, ids *IDs) (string, []models.Placeholder) {
	if !strings.Contains(src, AttrTrackType) {
		return src, nil
	}

	var (
		out          bytes.Buffer
		placeholders []models.Placeholder
	)
	out.Grow(len(src))

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				// The tokenizer only fails on read errors, which a string
				// reader never produces. Keep whatever is buffered.
				out.Write(z.Raw())
			}
			return out.String(), placeholders

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			name, hasAttr := z.TagName()
			kind, url, ok := trackMarker(z, hasAttr)
			if !ok {
				out.Write(raw)
				continue
			}

			p := models.Placeholder{
				ID:              ids.NextEmbed(),
				Kind:            models.PlaceholderTrack,
				Code:            vaultRelative(url, baseURL),
				IsFileReference: true,
				FileKind:        kind,
			}
			placeholders = append(placeholders, p)
			out.WriteString(p.ID)

			if tt == html.StartTagToken && !isVoid(string(name)) {
				skipElement(z, string(name))
			}

		default:
			out.Write(z.Raw())
		}
	}
}

func trackMarker(z *html.Tokenizer, hasAttr bool) (models.FileKind, string, bool) {
	var kind, url string
	var hasKind, hasURL bool
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		switch string(key) {
		case AttrTrackType:
			kind, hasKind = strings.ToLower(string(val)), true
		case AttrTrackURL:
			url, hasURL = string(val), true
		}
	}
	if !hasKind || !hasURL {
		return models.FileKindNone, "", false
	}
	return models.FileKind(kind), url, true
}

// skipElement consumes tokens up to and including the end tag that closes the
// element named name, tracking nested elements of the same name.
func skipElement(z *html.Tokenizer, name string) {
	depth := 1
	for depth > 0 {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken:
			if n, _ := z.TagName(); string(n) == name {
				depth++
			}
		case html.EndTagToken:
			if n, _ := z.TagName(); string(n) == name {
				depth--
			}
		}
	}
}

func vaultRelative(url, baseURL string) string {
	if baseURL != "" {
		url = strings.TrimPrefix(url, strings.TrimSuffix(baseURL, "/"))
	}
	return strings.TrimLeft(url, "/")
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

func isVoid(name string) bool { return voidElements[name] }
