package markdown

import (
	"html"
	"strings"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// UntitledPlaceholder is used when a document's first line yields no title.
const UntitledPlaceholder = "Untitled"

// Converter exposes the string based rendering used by the publisher.
type Converter struct {
	parser interfaces.MarkdownParser
	opts   interfaces.ParseOptions
	logger interfaces.Logger
}

var _ interfaces.MarkdownConverter = (*Converter)(nil)

// ConverterOption customises a Converter.
type ConverterOption func(*Converter)

// WithParser swaps the underlying Markdown parser.
func WithParser(parser interfaces.MarkdownParser) ConverterOption {
	return func(c *Converter) {
		if parser != nil {
			c.parser = parser
		}
	}
}

// WithLogger sets the logger used to report degraded renders.
func WithLogger(logger interfaces.Logger) ConverterOption {
	return func(c *Converter) {
		c.logger = logging.Ensure(logger)
	}
}

// NewConverter builds a Converter around a goldmark parser configured with opts.
func NewConverter(opts interfaces.ParseOptions, options ...ConverterOption) *Converter {
	c := &Converter{
		opts:   opts,
		logger: logging.NoOp(),
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	if c.parser == nil {
		c.parser = NewGoldmarkParser(opts)
	}
	return c
}

// Convert renders Markdown into HTML. It never fails: if the engine returns
// an error the escaped source is wrapped in a <pre> block instead.
func (c *Converter) Convert(markdown string) string {
	out, err := c.parser.ParseWithOptions([]byte(markdown), c.opts)
	if err != nil {
		c.logger.Warn("pagesync.markdown.render.degraded", "error", err)
		return "<pre>" + html.EscapeString(markdown) + "</pre>\n"
	}
	return string(out)
}

// SplitTitleAndContent takes the first line of the document as the page
// title and renders the remaining lines as the page body. A front matter
// title, when present, takes precedence over the first line.
func (c *Converter) SplitTitleAndContent(markdown string) interfaces.DocumentSplit {
	source := normalizeSource(markdown)

	meta, body, err := ParseFrontMatter(source)
	if err != nil {
		c.logger.Warn("pagesync.markdown.frontmatter.invalid", "error", err)
		meta, body = interfaces.FrontMatter{}, source
	}

	first, rest, _ := strings.Cut(body, "\n")
	title := headingText(first)

	if meta.Title != "" {
		// The first line stays in the body unless it restates the title
		// as a heading.
		if !isHeading(first) {
			rest = body
		}
		title = meta.Title
	}

	if title == "" {
		title = UntitledPlaceholder
	}

	return interfaces.DocumentSplit{
		Title:   title,
		Content: c.Convert(rest),
		Meta:    meta,
	}
}

func normalizeSource(source string) string {
	source = strings.TrimPrefix(source, "\ufeff")
	return strings.ReplaceAll(source, "\r\n", "\n")
}

func isHeading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// headingText strips the ATX heading markers from line: leading '#' runs and
// an optional closing sequence preceded by a space.
func headingText(line string) string {
	text := strings.TrimSpace(line)
	text = strings.TrimSpace(strings.TrimLeft(text, "#"))
	if trimmed := strings.TrimRight(text, "#"); trimmed != text {
		if trimmed == "" || strings.HasSuffix(trimmed, " ") {
			text = strings.TrimSpace(trimmed)
		}
	}
	return text
}
