// Package catalog indexes dataset roots laid out as root/{label}/{session}
// into immutable snapshots. metadata.json is the authority for what each
// session contains; files on disk that metadata does not describe are
// ignored, and described files that are missing or invalid produce
// warnings instead of failures.
package catalog
