// Package document provides local handling of uploaded documents: spooling
// an upload to a temporary file and computing its content fingerprint.
//
// Every extraction backend (the structure service client and the table
// extractor) addresses the document as a local file, never as a network
// handle, so the upload stream is always spooled fully to disk before any
// extraction step runs.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Spooled is an uploaded document copied to a local temporary file.
type Spooled struct {
	// Path is the location of the temporary file.
	Path string
	// Fingerprint is the SHA-256 hex digest of the full byte stream.
	Fingerprint string
	// Size is the document length in bytes.
	Size int64
}

// Spool copies r to a new temporary file under dir (the OS default when
// empty), computing the SHA-256 fingerprint in the same sequential pass.
// The file is fully written and synced before Spool returns, so readers
// never observe a partial copy. The caller owns the file and must call
// Cleanup when done.
func Spool(r io.Reader, dir string) (*Spooled, error) {
	tmp, err := os.CreateTemp(dir, "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("document: create temp file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("document: spool upload: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("document: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("document: close temp file: %w", err)
	}

	return &Spooled{
		Path:        tmp.Name(),
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
	}, nil
}

// Cleanup removes the temporary file. Safe to call more than once.
func (s *Spooled) Cleanup() error {
	if s.Path == "" {
		return nil
	}
	err := os.Remove(s.Path)
	s.Path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("document: remove temp file: %w", err)
	}
	return nil
}

// Fingerprint computes the SHA-256 hex digest of r using a sequential
// chunked read; the whole document is never held in memory at once.
func Fingerprint(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("document: fingerprint: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
