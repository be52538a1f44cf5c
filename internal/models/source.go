package models

// BookSource is the extracted representation of a book handed to the indexing
// pipeline. Document-format parsing happens upstream; the pipeline only
// consumes chapter text in ordinal order.
type BookSource struct {
	LibraryID int64           `json:"library_id"`
	Title     string          `json:"title"`
	Author    string          `json:"author,omitempty"`
	Path      string          `json:"path,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Tags      string          `json:"tags,omitempty"`
	PubDate   string          `json:"pubdate,omitempty"`
	Chapters  []ChapterSource `json:"chapters"`
}

// ChapterSource is one chapter of a book source, in ordinal order.
type ChapterSource struct {
	Ordinal    int    `json:"ordinal"`
	Title      string `json:"title"`
	SourcePath string `json:"source_path,omitempty"`
	Text       string `json:"text"`
}
