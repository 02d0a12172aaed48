package markdown

import (
	"fmt"
	"maps"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// ParseFrontMatter splits an optional YAML front matter block from the
// Markdown body. Sources without a leading "---" line are returned unchanged
// with empty metadata.
func ParseFrontMatter(source string) (interfaces.FrontMatter, string, error) {
	if !hasFrontMatter(source) {
		return interfaces.FrontMatter{}, source, nil
	}

	var meta frontMatterEnvelope
	body, err := frontmatter.Parse(strings.NewReader(source), &meta)
	if err != nil {
		return interfaces.FrontMatter{}, source, fmt.Errorf("parse frontmatter: %w", err)
	}

	return interfaces.FrontMatter{
		Title:  strings.TrimSpace(meta.Title),
		Slug:   strings.TrimSpace(meta.Slug),
		Parent: strings.TrimSpace(meta.Parent),
		Order:  meta.Order,
		Custom: maps.Clone(meta.Custom),
	}, strings.TrimLeft(string(body), "\n"), nil
}

type frontMatterEnvelope struct {
	Title  string         `yaml:"title"`
	Slug   string         `yaml:"slug"`
	Parent string         `yaml:"parent"`
	Order  int            `yaml:"order"`
	Custom map[string]any `yaml:",inline"`
}

func hasFrontMatter(source string) bool {
	first, _, _ := strings.Cut(source, "\n")
	return strings.TrimSpace(first) == "---"
}
