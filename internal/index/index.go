package index

import "github.com/starford/vaultview/internal/models"

// NoteIndex is the query surface the note service reads through.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []models.Link, headings []models.Heading) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []models.Edge, error)
	Backlinks(target string) ([]string, error)
	Headings(path string) ([]models.Heading, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
