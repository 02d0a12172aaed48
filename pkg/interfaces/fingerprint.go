package interfaces

// FingerprintStore maps source locations to the digest of the last content
// successfully published from them.
type FingerprintStore interface {
	Get(source string) (string, bool)
	Set(source, hash string)
	Len() int
	// Flush persists the full mapping, replacing any previous snapshot.
	Flush() error
}
