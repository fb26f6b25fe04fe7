package store

import (
	"strconv"
	"strings"
	"time"
)

// Persisted chunk metadata keys. Every stored chunk carries the chunk-level
// fields plus a snapshot of its document's fields at index time.
const (
	KeyDocumentID      = "document_id"
	KeyChunkIndex      = "chunk_index"
	KeySectionHeading  = "section_heading"
	KeyCharStart       = "char_start"
	KeyCharEnd         = "char_end"
	KeySource          = "source"
	KeyFilename        = "filename"
	KeyFormat          = "format"
	KeyQualityRating   = "quality_rating"
	KeyIsExternal      = "is_external_source"
	KeyTags            = "tags"
	KeyCreatedDate     = "created_date"
	KeyModifiedDate    = "modified_date"
	KeyContentChecksum = "content_checksum"
	// KeyDocumentFingerprint hashes the document fields above so metadata
	// edits are detected even when the body is unchanged.
	KeyDocumentFingerprint = "document_fingerprint"
)

// ChunkMetadata is the typed view of a stored chunk's metadata.
type ChunkMetadata struct {
	DocumentID      string
	ChunkIndex      int
	SectionHeading  string
	CharStart       int
	CharEnd         int
	Source          string
	Filename        string
	Format          string
	QualityRating   string
	IsExternal      bool
	Tags            []string
	CreatedDate     *time.Time
	ModifiedDate    *time.Time
	ContentChecksum string

	DocumentFingerprint string
}

// Map encodes m into the flat string map stored alongside each vector.
// Optional dates, an empty checksum and an empty fingerprint are omitted.
func (m ChunkMetadata) Map() map[string]string {
	md := map[string]string{
		KeyDocumentID:     m.DocumentID,
		KeyChunkIndex:     strconv.Itoa(m.ChunkIndex),
		KeySectionHeading: m.SectionHeading,
		KeyCharStart:      strconv.Itoa(m.CharStart),
		KeyCharEnd:        strconv.Itoa(m.CharEnd),
		KeySource:         m.Source,
		KeyFilename:       m.Filename,
		KeyFormat:         m.Format,
		KeyQualityRating:  m.QualityRating,
		KeyIsExternal:     strconv.FormatBool(m.IsExternal),
		KeyTags:           strings.Join(m.Tags, ","),
	}
	if m.CreatedDate != nil {
		md[KeyCreatedDate] = m.CreatedDate.UTC().Format(time.RFC3339)
	}
	if m.ModifiedDate != nil {
		md[KeyModifiedDate] = m.ModifiedDate.UTC().Format(time.RFC3339)
	}
	if m.ContentChecksum != "" {
		md[KeyContentChecksum] = m.ContentChecksum
	}
	if m.DocumentFingerprint != "" {
		md[KeyDocumentFingerprint] = m.DocumentFingerprint
	}
	return md
}

// ParseMetadata decodes a stored map. Malformed numbers become 0 and
// unparseable dates become nil rather than failing.
func ParseMetadata(md map[string]string) ChunkMetadata {
	isExternal, _ := strconv.ParseBool(md[KeyIsExternal])
	return ChunkMetadata{
		DocumentID:      md[KeyDocumentID],
		ChunkIndex:      atoi(md[KeyChunkIndex]),
		SectionHeading:  md[KeySectionHeading],
		CharStart:       atoi(md[KeyCharStart]),
		CharEnd:         atoi(md[KeyCharEnd]),
		Source:          md[KeySource],
		Filename:        md[KeyFilename],
		Format:          md[KeyFormat],
		QualityRating:   md[KeyQualityRating],
		IsExternal:      isExternal,
		Tags:            SplitTags(md[KeyTags]),
		CreatedDate:     ParseDate(md[KeyCreatedDate]),
		ModifiedDate:    ParseDate(md[KeyModifiedDate]),
		ContentChecksum: md[KeyContentChecksum],

		DocumentFingerprint: md[KeyDocumentFingerprint],
	}
}

// SplitTags splits a comma-joined tag string, dropping blanks.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate accepts the ISO-8601 forms written by this package and by
// hand-edited front matter. It returns nil when s is empty or unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
