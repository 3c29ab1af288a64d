// Package embed pulls diagram and track content out of Markdown before it is
// parsed, and turns track embed markers back into placeholders after the
// document has been serialized to HTML.
package embed

import (
	"strconv"

	"github.com/starford/vaultview/internal/models"
)

// Token prefixes. Tokens are plain [A-Z0-9_] so that neither the Markdown
// parser nor HTML escaping alters them.
const (
	mermaidPrefix    = "MERMAID_PLACEHOLDER_"
	trackPrefix      = "TRACK_PLACEHOLDER_"
	trackEmbedPrefix = "TRACK_PLACEHOLDER_EMBED_"
)

// IDs allocates placeholder tokens for a single render call. A zero IDs is
// ready to use; never share one between documents.
type IDs struct {
	mermaid int
	track   int
	embed   int
}

// Next returns the next token for kind. Tokens for fenced tracks and for
// reconciled track embeds come from separate counters.
func (ids *IDs) Next(kind models.PlaceholderKind) string {
	switch kind {
	case models.PlaceholderMermaid:
		n := ids.mermaid
		ids.mermaid++
		return mermaidPrefix + strconv.Itoa(n)
	default:
		n := ids.track
		ids.track++
		return trackPrefix + strconv.Itoa(n)
	}
}

// NextEmbed returns the next token for a track discovered after serialization.
func (ids *IDs) NextEmbed() string {
	n := ids.embed
	ids.embed++
	return trackEmbedPrefix + strconv.Itoa(n)
}
