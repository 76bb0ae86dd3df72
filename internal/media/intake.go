package media

import (
	"path/filepath"
	"strings"
)

// AllowList decides whether a file may enter a batch.
type AllowList struct {
	MimeTypes []string
	// AnyImage admits every image/* type whose extension or content is an
	// image the codec can read.
	AnyImage bool
	// MaxBytes rejects larger files when positive.
	MaxBytes int64
}

// ConverterAllowList admits the converter source types up to maxBytes.
func ConverterAllowList(maxBytes int64) AllowList {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceBytes
	}
	return AllowList{
		MimeTypes: []string{MimeJPEG, MimePNG, MimeWebP, MimePDF},
		MaxBytes:  maxBytes,
	}
}

// CompressorAllowList admits any decodable image.
func CompressorAllowList() AllowList {
	return AllowList{AnyImage: true}
}

// Allows reports whether f passes the extension/media-type filter.
func (a AllowList) Allows(f File) bool {
	if a.MaxBytes > 0 && f.Size() > a.MaxBytes {
		return false
	}
	mt := normalizeMime(f.MimeType)
	if mt == "" || mt == "application/octet-stream" {
		mt = MimeForExtension(filepath.Ext(f.Name))
	}
	if a.AnyImage && strings.HasPrefix(mt, "image/") {
		return true
	}
	for _, allowed := range a.MimeTypes {
		if mt == allowed {
			return true
		}
	}
	return false
}

// Filter splits files into accepted ones and a rejected count.
func (a AllowList) Filter(files []File) ([]File, int) {
	accepted := make([]File, 0, len(files))
	rejected := 0
	for _, f := range files {
		if a.Allows(f) {
			accepted = append(accepted, f)
			continue
		}
		rejected++
	}
	return accepted, rejected
}

// ValidateSource checks a single converter source against the allow-list and
// size bounds, returning a validation error with the reason.
func ValidateSource(f File, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceBytes
	}
	mt := normalizeMime(f.MimeType)
	switch mt {
	case MimeJPEG, MimePNG, MimeWebP, MimePDF:
	default:
		return Errorf(KindValidation, nil, "%s: media type %q is not accepted (jpeg, png, webp, pdf)", f.Name, f.MimeType)
	}
	if f.Size() == 0 {
		return Errorf(KindValidation, nil, "%s: file is empty", f.Name)
	}
	if f.Size() > maxBytes {
		return Errorf(KindValidation, nil, "%s: file is %d bytes, limit is %d", f.Name, f.Size(), maxBytes)
	}
	return nil
}
