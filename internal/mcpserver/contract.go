package mcpserver

import "strings"

// NoteFormatContract describes the Markdown dialect the vault renderer
// understands. LLM clients read it before writing notes.
//
// The text is written with ' in place of backticks so it can live in a raw
// string.
var NoteFormatContract = strings.ReplaceAll(noteFormat, "'", "`")

const noteFormat = `# Vault Note Format

Notes are UTF-8 Markdown files ending in '.md'. The renderer accepts
CommonMark with GitHub tables plus the Obsidian extensions below.

## Frontmatter

Optional YAML block, first thing in the file:

'''markdown
---
title: Summer in Hokkaido      # shown instead of the first H1
tags: [travel, japan]          # merged with inline #tags
---
'''

Without a 'title' the first '# Heading' is the title.

## Links

- '[[Note]]' links to Note.md. The '.md' extension is optional.
- '[[Note|label]]' changes the displayed text.
- '[[Note#Heading]]' jumps to a heading. Use the note_outline tool to see
  the anchors of a note.
- '[[/Trips/Plans/Note]]' is vault-absolute. '[[./Note]]' and
  '[[../Note]]' are relative to the current note. A bare name is looked up
  next to the current note, then anywhere in the vault by file name.
- Links to notes that do not exist are kept and shown as unresolved.
- Regular Markdown links '[text](other.md)' work too.

## Embeds

- '![[photo.png]]' embeds an image. '![[photo.png|300]]' sets its width.
- '![[route.gpx]]' and '![[route.kml]]' embed a map track.
- '![[Other note]]' embeds another note.

Upload files with the upload_asset tool; it answers with the embed to paste.

## Tags

'#tag' anywhere in text, letters, digits, '_', '-' and '/' for nesting
('#travel/japan'). A tag must follow a space or punctuation, so '$5#x'
is not a tag, and '#2024' (digits only) is not a tag either.

## Highlights

'==important==' renders as highlighted text.

## Callouts

'''markdown
> [!tip] Optional title
> Body text, lists and code blocks are allowed.
'''

Types are free-form words (note, tip, warning, danger...). Add '-' or '+'
after the bracket ('> [!faq]-') to make the callout foldable.

## Diagrams and tracks

~~~markdown
'''mermaid
graph TD; A-->B
'''
~~~

A fenced 'gpx' or 'kml' block holds a literal track. A single line
'gpx:Tracks/day1.gpx' inside the fence references a file instead.

## Rules

1. Use forward slashes in paths; never start a path segment with '.'.
2. Prefer wikilinks for notes and embeds for attachments.
3. Do not write raw HTML when a Markdown construct exists.
`
