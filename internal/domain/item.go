package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Format int

const (
	FormatEPUB Format = iota + 1
	FormatPDF
	FormatEPUBPDF
)

func (f Format) String() string {
	switch f {
	case FormatEPUB:
		return "epub"
	case FormatPDF:
		return "pdf"
	case FormatEPUBPDF:
		return "epub+pdf"
	default:
		return "unknown"
	}
}

func FormatForExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case ".epub":
		return FormatEPUB, true
	case ".pdf":
		return FormatPDF, true
	default:
		return 0, false
	}
}

func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/epub+zip"
}

// Item is a catalog entry backed by an object in the public bucket and,
// while lending state requires it, a copy in the protected bucket.
type Item struct {
	ID              int64      `json:"id"`
	EditionID       int64      `json:"edition_id"`
	Formats         Format     `json:"formats"`
	LendingRequired bool       `json:"lending_required"`
	StorageKey      string     `json:"-"`
	ProtectedKey    *string    `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ObjectKey returns the object name shared by the public and protected
// buckets, e.g. "123456.epub".
func ObjectKey(editionID int64, filename string) string {
	return fmt.Sprintf("%d%s", editionID, strings.ToLower(filepath.Ext(filename)))
}

type UploadRequest struct {
	EditionID       int64
	LendingRequired bool
	Filename        string
	Size            int64
}

func (r *UploadRequest) Validate(maxSize int64) error {
	if r.EditionID <= 0 {
		return fmt.Errorf("%w: edition id must be a positive integer", ErrValidation)
	}
	if r.Size > maxSize {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrFileTooLarge, maxSize)
	}
	if _, ok := FormatForExtension(filepath.Ext(r.Filename)); !ok {
		return fmt.Errorf("%w: only .epub and .pdf files are accepted", ErrInvalidFormat)
	}
	return nil
}
