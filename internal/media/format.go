package media

import (
	"slices"
	"strings"
)

// Format is a conversion target tag.
type Format string

const (
	FormatJPG     Format = "jpg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatPDF     Format = "pdf"
	FormatPNGNoBG Format = "png-no-bg"
)

// Formats lists every conversion target in dispatch order.
func Formats() []Format {
	return []Format{FormatJPG, FormatPNG, FormatWebP, FormatPDF, FormatPNGNoBG}
}

// FormatList is Formats joined for help and error texts.
func FormatList() string {
	tags := make([]string, 0, 5)
	for _, f := range Formats() {
		tags = append(tags, string(f))
	}
	return strings.Join(tags, ", ")
}

// ParseFormat accepts a target tag, tolerating case and the "jpeg" alias.
// Anything outside the closed set is an UnsupportedFormat error.
func ParseFormat(tag string) (Format, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "jpeg" {
		t = string(FormatJPG)
	}
	f := Format(t)
	if !f.Valid() {
		return "", Errorf(KindUnsupportedFormat, nil, "unsupported format %q (supported: %s)", tag, FormatList())
	}
	return f, nil
}

func (f Format) Valid() bool {
	return slices.Contains(Formats(), f)
}

// MimeType is the media type of the output produced for this target.
func (f Format) MimeType() string {
	switch f {
	case FormatJPG:
		return MimeJPEG
	case FormatPNG, FormatPNGNoBG:
		return MimePNG
	case FormatWebP:
		return MimeWebP
	case FormatPDF:
		return MimePDF
	}
	return ""
}

// Extension is the file extension of the output, png for png-no-bg.
func (f Format) Extension() string {
	if f == FormatPNGNoBG {
		return "png"
	}
	return string(f)
}

func (f Format) String() string { return string(f) }
