// Package sync drives one change-detection run: it loads the manifest,
// fetches and fingerprints every Markdown source, republishes the entries
// whose content changed and records the new fingerprints.
//
// Fetching runs in parallel; publishing and fingerprint updates happen one
// entry at a time, parents before children.
package sync
