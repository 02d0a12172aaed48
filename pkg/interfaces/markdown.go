package interfaces

// MarkdownParser defines how raw Markdown bytes are converted into HTML.
// Implementations are reused for every entry of a sync run, so they must not
// keep per-document state.
type MarkdownParser interface {
	// Parse converts Markdown into HTML using the parser's default settings.
	Parse(markdown []byte) ([]byte, error)
	// ParseWithOptions converts Markdown into HTML using the supplied overrides.
	ParseWithOptions(markdown []byte, opts ParseOptions) ([]byte, error)
}

// ParseOptions customises Markdown parsing behaviour, keeping option names
// readable for configuration unmarshalling and CLI flags.
type ParseOptions struct {
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Sanitize   bool     `json:"sanitize,omitempty" yaml:"sanitize,omitempty"`
	HardWraps  bool     `json:"hard_wraps,omitempty" yaml:"hard_wraps,omitempty"`
	SafeMode   bool     `json:"safe_mode,omitempty" yaml:"safe_mode,omitempty"`
}

// MarkdownConverter is the string oriented surface the publisher consumes.
// Convert never fails; malformed Markdown renders on a best-effort basis.
type MarkdownConverter interface {
	Convert(markdown string) string
	SplitTitleAndContent(markdown string) DocumentSplit
}

// DocumentSplit is the result of separating a Markdown document into the
// page title and the rendered HTML body.
type DocumentSplit struct {
	Title   string
	Content string
	// Meta carries front matter values found at the top of the document.
	// The manifest stays authoritative; Meta is informational.
	Meta FrontMatter
}

// FrontMatter models the metadata block optionally found at the top of a
// Markdown source.
type FrontMatter struct {
	Title  string         `yaml:"title" json:"title"`
	Slug   string         `yaml:"slug" json:"slug"`
	Parent string         `yaml:"parent" json:"parent"`
	Order  int            `yaml:"order" json:"order"`
	Custom map[string]any `yaml:",inline" json:"custom"`
}

// Empty reports whether no front matter values were found.
func (f FrontMatter) Empty() bool {
	return f.Title == "" && f.Slug == "" && f.Parent == "" && f.Order == 0 && len(f.Custom) == 0
}
