// Package media holds the immutable file model shared by every pipeline stage:
// source files, output format tags, media type detection and intake rules.
package media

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
	MimePDF  = "application/pdf"
	MimeZIP  = "application/zip"
)

// DefaultMaxSourceBytes is the converter intake limit.
const DefaultMaxSourceBytes int64 = 10 * 1024 * 1024

// File is an in-memory binary resource. Stages never mutate a File; they
// return a new one.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// NewFile builds a File, detecting the media type from content when mimeType
// is empty or generic.
func NewFile(name, mimeType string, data []byte) File {
	mimeType = normalizeMime(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMimeType(name, data)
	}
	return File{Name: name, MimeType: mimeType, Data: data}
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// Extension returns the extension of the file name as written, without the
// dot, falling back to the extension implied by the media type.
func (f File) Extension() string {
	if ext := strings.TrimPrefix(filepath.Ext(f.Name), "."); ext != "" {
		return ext
	}
	return ExtensionFor(f.MimeType)
}

// BaseName returns the file name without directory and extension.
func (f File) BaseName() string {
	base := filepath.Base(f.Name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "file"
	}
	return base
}

func (f File) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", f.Name, f.MimeType, len(f.Data))
}

// CompressedName is the output name for a compressed file:
// {base}_compressed.{originalExtension}.
func CompressedName(f File) string {
	return fmt.Sprintf("%s_compressed.%s", f.BaseName(), f.Extension())
}

// ConvertedName is the output name for a converted file:
// {base}_converted.{targetExtension}.
func ConvertedName(f File, format Format) string {
	return fmt.Sprintf("%s_converted.%s", f.BaseName(), format.Extension())
}

// ExtensionFor maps a media type to its canonical file extension.
func ExtensionFor(mimeType string) string {
	switch normalizeMime(mimeType) {
	case MimeJPEG:
		return "jpg"
	case MimePNG:
		return "png"
	case MimeWebP:
		return "webp"
	case MimePDF:
		return "pdf"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/tiff":
		return "tiff"
	case MimeZIP:
		return "zip"
	default:
		return "bin"
	}
}

// MimeForExtension maps a file extension (with or without dot) to a media type.
func MimeForExtension(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg", "jpe":
		return MimeJPEG
	case "png":
		return MimePNG
	case "webp":
		return MimeWebP
	case "pdf":
		return MimePDF
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return ""
	}
}

// DetectMimeType sniffs the content first and falls back to the extension.
func DetectMimeType(name string, data []byte) string {
	if kind := Sniff(data); kind != KindUnknown {
		return kind.MimeType()
	}
	if mt := MimeForExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	n := len(data)
	if n > 512 {
		n = 512
	}
	return normalizeMime(http.DetectContentType(data[:n]))
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" || mimeType == "image/pjpeg" {
		return MimeJPEG
	}
	return mimeType
}

// NormalizeMime lower-cases a media type and strips parameters.
func NormalizeMime(mimeType string) string { return normalizeMime(mimeType) }
