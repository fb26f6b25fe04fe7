// Package corpus models source documents and loads them from disk.
package corpus

import (
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/checksum"
)

// Format names recognised by the loader.
const (
	FormatMarkdown = "md"
	FormatText     = "txt"
	FormatPDF      = "pdf"
)

// Document is one version of a source file's extracted text plus the
// attributes used for filtering and ranking.
type Document struct {
	ID              string
	SourcePath      string
	Filename        string
	Format          string
	Content         string
	CreatedDate     *time.Time
	ModifiedDate    *time.Time
	Quality         Quality
	Tags            []string
	IsExternal      bool
	WordCount       int
	ContentChecksum string
}

// HasTag reports whether the document carries tag (case-insensitive).
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Fingerprint hashes the document attributes copied onto every chunk.
// Body text is covered by ContentChecksum instead, so a front matter edit
// changes the fingerprint while leaving the checksum alone.
func (d *Document) Fingerprint() string {
	fields := []string{
		d.SourcePath,
		d.Filename,
		d.Format,
		d.Quality.String(),
		strconv.FormatBool(d.IsExternal),
		strings.Join(d.Tags, ","),
		formatDate(d.CreatedDate),
		formatDate(d.ModifiedDate),
	}
	return checksum.Of(strings.Join(fields, "\x00"))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
