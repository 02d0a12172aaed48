package manifest

import (
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-slug"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// cleanSlug trims surrounding whitespace. Slugs are lookup keys and are
// otherwise kept exactly as written.
func cleanSlug(value string) string {
	return strings.TrimSpace(value)
}

// CanonicalSlug reports the default-rule form of value and whether value
// already has it. Non-canonical slugs are still published as written.
func CanonicalSlug(value string) (string, bool) {
	if slug.IsValid(value) {
		return value, true
	}
	normalized, err := slug.Normalize(value)
	if err != nil {
		return "", false
	}
	return normalized, false
}

var slugRule = validation.By(func(value any) error {
	text, _ := value.(string)
	if text == "" {
		return nil
	}
	if strings.ContainsAny(text, "/?#") || strings.IndexFunc(text, unicode.IsSpace) >= 0 {
		return validation.NewError("validation_slug_invalid", "must not contain whitespace, '/', '?' or '#'")
	}
	return nil
})

var sourceRule = validation.By(func(value any) error {
	text, _ := value.(string)
	if text == "" || SupportedLocation(text) {
		return nil
	}
	return validation.NewError("validation_source_unsupported", "must be an http(s) URL, file URL or path")
})

// ValidateEntry checks that entry can be synchronised. The returned error
// carries the validation category and per-field messages.
func ValidateEntry(entry interfaces.ManifestEntry) error {
	if entry.DecodeErr != nil {
		return goerrors.NewValidation("manifest entry is invalid", goerrors.FieldError{
			Field:   "entry",
			Message: entry.DecodeErr.Error(),
		}).WithTextCode(TextCodeEntryInvalid).
			WithMetadata(map[string]any{"key": entry.Key, "slug": entry.Slug})
	}
	err := validation.ValidateStruct(&entry,
		validation.Field(&entry.Slug, validation.Required, slugRule),
		validation.Field(&entry.Source, validation.Required, sourceRule),
		validation.Field(&entry.Parent, slugRule, validation.NotIn(entry.Slug).Error("must differ from the entry slug")),
		validation.Field(&entry.Endpoint, validation.When(entry.ContentID > 0, validation.Required)),
		validation.Field(&entry.ContentID, validation.Min(0)),
	)
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "manifest entry is invalid").
		WithTextCode(TextCodeEntryInvalid).
		WithMetadata(map[string]any{"key": entry.Key, "slug": entry.Slug})
}

// ValidateEntries checks every entry and reports duplicate slugs. The result
// maps entry keys to their validation error.
func ValidateEntries(entries []interfaces.ManifestEntry) map[string]error {
	problems := map[string]error{}
	seen := map[string]string{}
	for _, entry := range entries {
		if err := ValidateEntry(entry); err != nil {
			problems[entry.Key] = err
			continue
		}
		if first, dup := seen[entry.Slug]; dup {
			problems[entry.Key] = goerrors.NewValidation("manifest entry is invalid", goerrors.FieldError{
				Field:   "slug",
				Message: "duplicates the slug of entry " + first,
			}).WithTextCode(TextCodeEntryInvalid).
				WithMetadata(map[string]any{"key": entry.Key, "slug": entry.Slug})
			continue
		}
		seen[entry.Slug] = entry.Key
	}
	return problems
}
