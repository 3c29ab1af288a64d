package models

// Document is one unit of rendering input. Path is the vault path of the file
// (e.g. "/Trips/Visited-Places.md"); an empty Path means the document has no
// location and relative links resolve against the vault root.
type Document struct {
	Text string
	Path string
}

// PlaceholderKind identifies the external renderer a placeholder is meant for.
type PlaceholderKind string

const (
	PlaceholderMermaid PlaceholderKind = "mermaid"
	PlaceholderTrack   PlaceholderKind = "track"
)

// FileKind is the geospatial format of a track placeholder.
type FileKind string

const (
	FileKindNone FileKind = ""
	FileKindGPX  FileKind = "gpx"
	FileKindKML  FileKind = "kml"
)

// Placeholder marks a spot in rendered HTML where an externally rendered
// widget must be swapped in. ID appears verbatim in the HTML.
type Placeholder struct {
	ID              string          `json:"id"`
	Kind            PlaceholderKind `json:"kind"`
	Code            string          `json:"code"`
	IsFileReference bool            `json:"is_file_reference"`
	FileKind        FileKind        `json:"file_kind,omitempty"`
}

// LinkKind distinguishes the three wikilink flavours.
type LinkKind int

const (
	LinkFile LinkKind = iota
	LinkImage
	LinkEmbed
)

func (k LinkKind) String() string {
	switch k {
	case LinkImage:
		return "image"
	case LinkEmbed:
		return "embed"
	default:
		return "file"
	}
}

// LinkTarget is the parsed body of a [[...]] or ![[...]] construct.
type LinkTarget struct {
	Raw      string
	Fragment string // heading or block reference after '#', without the '#'
	Display  string
	Kind     LinkKind
}

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

// Link is an outgoing link found while rendering.
type Link struct {
	Target string `json:"target"`
	Text   string `json:"text"`
	Type   string `json:"type,omitempty"` // "wikilink", "embed" or "markdown"
}

// Metadata is the structured data collected from a rendered document.
type Metadata struct {
	Headings []Heading `json:"headings"`
	Links    []Link    `json:"links"`
	Tags     []string  `json:"tags"`
}

// Rendered is the result of running a document through the render pipeline.
type Rendered struct {
	HTML         string         `json:"html"`
	Title        string         `json:"title,omitempty"`
	Frontmatter  map[string]any `json:"frontmatter,omitempty"`
	Metadata     Metadata       `json:"metadata"`
	Placeholders []Placeholder  `json:"placeholders"`
	// Unresolved holds the raw targets of wikilinks and embeds that matched
	// no vault file. The index uses them to re-render the note once such a
	// file appears.
	Unresolved []string `json:"-"`
}
