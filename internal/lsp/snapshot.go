package lsp

import (
	"path"
	"strings"

	"go.lsp.dev/protocol"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Snapshot holds the open documents, keyed by URI.
type Snapshot struct {
	file cmap.ConcurrentMap[string, *Document]
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		file: cmap.New[*Document](),
	}
}

func (s *Snapshot) Get(uri protocol.DocumentURI) (*Document, bool) {
	return s.file.Get(string(uri))
}

func (s *Snapshot) Set(doc *Document) {
	s.file.Set(string(doc.URI), doc)
}

func (s *Snapshot) Remove(uri protocol.DocumentURI) {
	s.file.Remove(string(uri))
}

func (s *Snapshot) Clear() {
	s.file.Clear()
}

func (s *Snapshot) Len() int {
	return s.file.Count()
}

// contains an open document.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID protocol.LanguageIdentifier
	Version    int32
	Src        []byte
}

func (d *Document) IsGo() bool {
	if d.LanguageID == protocol.GoLanguage {
		return true
	}
	return strings.HasSuffix(path.Base(string(d.URI)), ".go")
}
