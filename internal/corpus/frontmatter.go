package corpus

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontMatter is the optional YAML header of a markdown document.
type frontMatter struct {
	Title    string     `yaml:"title"`
	Quality  string     `yaml:"quality"`
	Tags     tagList    `yaml:"tags"`
	Created  *time.Time `yaml:"created"`
	Modified *time.Time `yaml:"modified"`
	External bool       `yaml:"external"`
}

// tagList accepts either a YAML sequence or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*t = splitTags(raw)
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*t = cleanTags(list)
	return nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from
// the body. Text without one is returned unchanged with a nil header.
func splitFrontMatter(text string) (header []byte, body string) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return nil, text
	}
	rest := normalized[len("---\n"):]

	if strings.HasPrefix(rest, "---\n") {
		// empty header
		return []byte{}, rest[len("---\n"):]
	}

	end := strings.Index(rest, "\n---\n")
	closing := end + len("\n---\n")
	if end < 0 {
		if !strings.HasSuffix(rest, "\n---") {
			return nil, text
		}
		end = len(rest) - len("\n---")
		closing = len(rest)
	}
	return []byte(rest[:end]), strings.TrimLeft(rest[closing:], "\n")
}

func parseFrontMatter(header []byte) (frontMatter, error) {
	var fm frontMatter
	if len(header) == 0 {
		return fm, nil
	}
	err := yaml.Unmarshal(header, &fm)
	return fm, err
}

func splitTags(s string) []string {
	return cleanTags(strings.Split(s, ","))
}

func cleanTags(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		out = append(out, tag)
	}
	return out
}
