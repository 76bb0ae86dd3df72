package img

import (
	"bytes"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// MetadataTags counts the EXIF tags embedded in data. Files without EXIF
// report zero.
func MetadataTags(data []byte) (int, error) {
	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(bytes.NewReader(data), nil, true)
	if err != nil {
		if isNoExif(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(tags), nil
}

func isNoExif(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
