package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/corpusrank/internal/checksum"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// DefaultExtensions are the file types the loader understands.
var DefaultExtensions = []string{".md", ".markdown", ".txt", ".pdf"}

// DefaultExclude skips hidden entries and the index data directory.
var DefaultExclude = []string{".*", "node_modules"}

// Loader reads corpus files under a root directory into Documents.
type Loader struct {
	root       string
	extensions map[string]bool
	exclude    []string
}

// NewLoader creates a loader for root. Nil extensions or exclude use the
// defaults; an empty non-nil exclude disables exclusion.
func NewLoader(root string, extensions, exclude []string) (*Loader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus root %s: %w", root, err)
	}
	if extensions == nil {
		extensions = DefaultExtensions
	}
	if exclude == nil {
		exclude = DefaultExclude
	}
	for _, pattern := range exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, cerrors.InvalidArgument("bad exclude pattern %q: %v", pattern, err)
		}
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return &Loader{root: abs, extensions: exts, exclude: exclude}, nil
}

// Root returns the absolute corpus root.
func (l *Loader) Root() string { return l.root }

// Supports reports whether path has a loadable extension and is not excluded.
func (l *Loader) Supports(path string) bool {
	rel, err := l.rel(path)
	if err != nil {
		return false
	}
	return l.extensions[strings.ToLower(filepath.Ext(rel))] && !l.excluded(rel)
}

// Walk returns the corpus-relative paths of every supported file in
// lexical order.
func (l *Loader) Walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == l.root {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if l.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if l.extensions[strings.ToLower(filepath.Ext(rel))] {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", l.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads one file. path may be absolute or relative to the root.
func (l *Loader) Load(path string) (*Document, error) {
	rel, err := l.rel(path)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(l.root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.New(cerrors.ErrCodeFileNotFound, "file not found: "+rel, err)
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeFileNotFound, err)
	}

	doc := &Document{
		ID:         IDForPath(rel),
		SourcePath: rel,
		Filename:   filepath.Base(rel),
		Quality:    QualityStandard,
	}
	mtime := info.ModTime().UTC()
	doc.ModifiedDate = &mtime

	ext := strings.ToLower(filepath.Ext(rel))
	switch ext {
	case ".md", ".markdown":
		doc.Format = FormatMarkdown
		if err := l.loadMarkdown(full, doc); err != nil {
			return nil, err
		}
	case ".txt":
		doc.Format = FormatText
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeFileNotFound, err)
		}
		doc.Content = string(data)
	case ".pdf":
		doc.Format = FormatPDF
		text, err := extractPDF(full)
		if err != nil {
			return nil, cerrors.New(cerrors.ErrCodeUnsupportedFile, "reading pdf "+rel, err)
		}
		doc.Content = text
	default:
		return nil, cerrors.New(cerrors.ErrCodeUnsupportedFile, "unsupported file type: "+rel, nil)
	}

	doc.WordCount = len(strings.Fields(doc.Content))
	doc.ContentChecksum = checksum.Of(doc.Content)
	return doc, nil
}

func (l *Loader) loadMarkdown(full string, doc *Document) error {
	data, err := os.ReadFile(full)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeFileNotFound, err)
	}
	header, body := splitFrontMatter(string(data))
	doc.Content = body

	fm, err := parseFrontMatter(header)
	if err != nil {
		slog.Warn("front_matter_invalid",
			slog.String("path", doc.SourcePath),
			slog.String("error", err.Error()))
		return nil
	}

	quality, err := ParseQuality(fm.Quality)
	if err != nil {
		return fmt.Errorf("%s: %w", doc.SourcePath, err)
	}
	doc.Quality = quality
	doc.Tags = fm.Tags
	doc.IsExternal = fm.External
	if fm.Created != nil {
		created := fm.Created.UTC()
		doc.CreatedDate = &created
	}
	if fm.Modified != nil {
		modified := fm.Modified.UTC()
		doc.ModifiedDate = &modified
	}
	return nil
}

// extractPDF concatenates the plain text of every readable page.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf_page_skipped", slog.String("path", path), slog.Int("page", i))
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Excludes reports whether path falls under an exclude pattern. Paths
// outside the root are always excluded.
func (l *Loader) Excludes(path string) bool {
	rel, err := l.rel(path)
	if err != nil {
		return true
	}
	return rel != "." && l.excluded(rel)
}

// rel converts path to a slash-separated path relative to the root.
func (l *Loader) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", cerrors.InvalidArgument("%s is outside corpus root %s", path, l.root)
	}
	return filepath.ToSlash(rel), nil
}

// excluded matches each pattern against every path segment and the full
// relative path.
func (l *Loader) excluded(rel string) bool {
	segments := strings.Split(rel, "/")
	for _, pattern := range l.exclude {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		for _, seg := range segments {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// IDForPath is the stable document id for a corpus-relative path.
func IDForPath(rel string) string {
	return checksum.Of(filepath.ToSlash(rel))
}
