package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// rawEntry is the wire shape of a manifest record. The Markdown location may
// be given under any of the accepted source keys.
type rawEntry struct {
	Slug      string  `json:"slug" yaml:"slug"`
	Markdown  string  `json:"markdown" yaml:"markdown"`
	Source    string  `json:"source" yaml:"source"`
	FileURL   string  `json:"file_url" yaml:"file_url"`
	URL       string  `json:"url" yaml:"url"`
	Parent    *string `json:"parent" yaml:"parent"`
	Order     flexInt `json:"order" yaml:"order"`
	ContentID flexInt `json:"content_id" yaml:"content_id"`
	Endpoint  string  `json:"endpoint" yaml:"endpoint"`
}

func (r rawEntry) source() string {
	for _, candidate := range []string{r.Markdown, r.Source, r.FileURL, r.URL} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (r rawEntry) toEntry(key string) interfaces.ManifestEntry {
	entry := interfaces.ManifestEntry{
		Key:       key,
		Slug:      cleanSlug(r.Slug),
		Source:    r.source(),
		Order:     int(r.Order),
		ContentID: int(r.ContentID),
		Endpoint:  strings.TrimSpace(r.Endpoint),
	}
	if r.Parent != nil {
		entry.Parent = cleanSlug(*r.Parent)
	}
	return entry
}

// flexInt accepts numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" || text == `""` {
		*f = 0
		return nil
	}
	text = strings.Trim(text, `"`)
	return f.set(text)
}

func (f *flexInt) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*f = 0
		return nil
	}
	return f.set(node.Value)
}

func (f *flexInt) set(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		*f = 0
		return nil
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("expected integer, got %q", text)
	}
	*f = flexInt(value)
	return nil
}

// Parse decodes a manifest document. Both the list form and the map form
// (key → entry) are accepted, as JSON or YAML. Map entries keep document order.
func Parse(data []byte) ([]interfaces.ManifestEntry, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, newParseError("manifest is empty")
	}

	switch trimmed[0] {
	case '[':
		return parseJSONList(trimmed)
	case '{':
		return parseJSONMap(trimmed)
	default:
		return parseYAML(trimmed)
	}
}

var (
	errEntryNull      = errors.New("entry is null")
	errEntryNotObject = errors.New("entry is not an object")
)

// decodeJSONEntry decodes one record. Records that cannot be decoded are
// returned with DecodeErr set so a single bad entry does not fail the run.
func decodeJSONEntry(key string, data json.RawMessage) interfaces.ManifestEntry {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		return interfaces.ManifestEntry{Key: key, DecodeErr: errEntryNull}
	case len(trimmed) == 0 || trimmed[0] != '{':
		return interfaces.ManifestEntry{Key: key, DecodeErr: errEntryNotObject}
	}
	var raw rawEntry
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		entry := raw.toEntry(key)
		entry.DecodeErr = err
		return entry
	}
	return raw.toEntry(key)
}

func parseJSONList(data []byte) ([]interfaces.ManifestEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, wrapParse(err, "manifest list could not be decoded")
	}
	entries := make([]interfaces.ManifestEntry, 0, len(items))
	for idx, item := range items {
		entries = append(entries, decodeJSONEntry(strconv.Itoa(idx), item))
	}
	return entries, nil
}

func parseJSONMap(data []byte) ([]interfaces.ManifestEntry, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if _, err := decoder.Token(); err != nil {
		return nil, wrapParse(err, "manifest map could not be decoded")
	}

	var entries []interfaces.ManifestEntry
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, wrapParse(err, "manifest map could not be decoded")
		}
		key, ok := token.(string)
		if !ok {
			return nil, newParseError("manifest map key %v is not a string", token)
		}
		var item json.RawMessage
		if err := decoder.Decode(&item); err != nil {
			return nil, wrapParse(err, fmt.Sprintf("manifest entry %q could not be read", key))
		}
		entries = append(entries, decodeJSONEntry(key, item))
	}

	if _, err := decoder.Token(); err != nil {
		return nil, wrapParse(err, "manifest map could not be decoded")
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, newParseError("manifest has trailing data")
	}
	return entries, nil
}

func parseYAML(data []byte) ([]interfaces.ManifestEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, wrapParse(err, "manifest could not be decoded")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, newParseError("manifest is empty")
	}

	root := doc.Content[0]
	var entries []interfaces.ManifestEntry
	switch root.Kind {
	case yaml.SequenceNode:
		for idx, node := range root.Content {
			entries = append(entries, decodeYAMLEntry(strconv.Itoa(idx), node))
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i].Value
			entries = append(entries, decodeYAMLEntry(key, root.Content[i+1]))
		}
	default:
		return nil, newParseError("manifest must be a list or a map of entries")
	}
	return entries, nil
}

func decodeYAMLEntry(key string, node *yaml.Node) interfaces.ManifestEntry {
	switch {
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return interfaces.ManifestEntry{Key: key, DecodeErr: errEntryNull}
	case node.Kind != yaml.MappingNode:
		return interfaces.ManifestEntry{Key: key, DecodeErr: errEntryNotObject}
	}
	var raw rawEntry
	if err := node.Decode(&raw); err != nil {
		entry := raw.toEntry(key)
		entry.DecodeErr = err
		return entry
	}
	return raw.toEntry(key)
}
