// Package markdown renders manifest Markdown sources into the HTML bodies
// published as pages. It wraps goldmark behind interfaces.MarkdownParser and
// adds the title/body split used by the publisher: the first line of a
// document, stripped of its heading marker, becomes the page title.
package markdown
