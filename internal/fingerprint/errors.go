package fingerprint

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const TextCodeCorrupt = "FINGERPRINT_CORRUPT"

// CorruptError reports a fingerprint file that cannot be trusted. Line is
// 1-based and zero when the problem is not tied to a record.
type CorruptError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("fingerprint file %s line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("fingerprint file %s: %s", e.Path, e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func wrapCorrupt(err *CorruptError) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "fingerprint file is corrupt").
		WithTextCode(TextCodeCorrupt).
		WithMetadata(map[string]any{"path": err.Path, "line": err.Line})
}
