// Package outline assesses how well the corpus covers each section of a
// document outline.
package outline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/rank"
)

// PathSeparator joins section titles in SectionCoverage.Path.
const PathSeparator = " > "

// DefaultConcurrency bounds parallel coverage queries in Assess.
const DefaultConcurrency = 4

// Section is one node of an outline tree.
type Section struct {
	Title       string    `yaml:"title"`
	Keywords    []string  `yaml:"keywords,omitempty"`
	Subsections []Section `yaml:"sections,omitempty"`
}

// Query is the coverage query for s: the title followed by its keywords.
func (s Section) Query() string {
	parts := append([]string{s.Title}, s.Keywords...)
	return strings.Join(nonEmpty(parts), " ")
}

// FlatSection is a section with its position in the tree.
type FlatSection struct {
	Path    string
	Depth   int
	Section Section
}

// Flatten walks root pre-order: parents before children, siblings in
// declared order. An untitled root is a container and is not emitted.
func Flatten(root Section) []FlatSection {
	var out []FlatSection
	if root.Title == "" {
		for _, child := range root.Subsections {
			out = flatten(out, child, nil, 0)
		}
		return out
	}
	return flatten(out, root, nil, 0)
}

func flatten(out []FlatSection, s Section, parents []string, depth int) []FlatSection {
	path := append(append([]string(nil), parents...), s.Title)
	out = append(out, FlatSection{
		Path:    strings.Join(path, PathSeparator),
		Depth:   depth,
		Section: s,
	})
	for _, child := range s.Subsections {
		out = flatten(out, child, path, depth+1)
	}
	return out
}

// Parse reads an outline from YAML. The document is either a single
// section mapping or a sequence of top-level sections.
func Parse(data []byte) (Section, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Section{}, cerrors.InvalidArgument("parse outline: %v", err)
	}
	if len(node.Content) == 0 {
		return Section{}, cerrors.InvalidArgument("outline is empty")
	}

	var root Section
	doc := node.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&root.Subsections); err != nil {
			return Section{}, cerrors.InvalidArgument("parse outline: %v", err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&root); err != nil {
			return Section{}, cerrors.InvalidArgument("parse outline: %v", err)
		}
	default:
		return Section{}, cerrors.InvalidArgument("outline must be a mapping or a sequence of sections")
	}

	if err := validate(root, root.Title == ""); err != nil {
		return Section{}, err
	}
	return root, nil
}

func validate(s Section, container bool) error {
	if !container && strings.TrimSpace(s.Title) == "" {
		return cerrors.InvalidArgument("outline section without a title")
	}
	for _, child := range s.Subsections {
		if err := validate(child, false); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders root back to YAML.
func Marshal(root Section) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	var v any = root
	if root.Title == "" {
		v = root.Subsections
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode outline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Coverer scores a query against the corpus. rank.Engine implements it.
type Coverer interface {
	Coverage(ctx context.Context, query string) (rank.Coverage, error)
}

// SectionCoverage is the coverage of one flattened section.
type SectionCoverage struct {
	Path     string        `json:"path"`
	Depth    int           `json:"depth"`
	Section  Section       `json:"-"`
	Coverage rank.Coverage `json:"coverage"`
}

// Assessment lists section coverage in flatten order.
type Assessment []SectionCoverage

// Assess scores every section of root, returning results in flatten order.
func Assess(ctx context.Context, c Coverer, root Section) (Assessment, error) {
	sections := Flatten(root)
	out := make(Assessment, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for i, fs := range sections {
		g.Go(func() error {
			cov, err := c.Coverage(gctx, fs.Section.Query())
			if err != nil {
				return fmt.Errorf("assess %q: %w", fs.Path, err)
			}
			out[i] = SectionCoverage{
				Path:     fs.Path,
				Depth:    fs.Depth,
				Section:  fs.Section,
				Coverage: cov,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Thin lists sections whose coverage is below threshold percent.
func (a Assessment) Thin(threshold float64) []SectionCoverage {
	var out []SectionCoverage
	for _, sc := range a {
		if sc.Coverage.Pct < threshold {
			out = append(out, sc)
		}
	}
	return out
}

// Mean is the average coverage percentage; zero for an empty assessment.
func (a Assessment) Mean() float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for _, sc := range a {
		sum += sc.Coverage.Pct
	}
	return sum / float64(len(a))
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
