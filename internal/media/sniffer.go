package media

// Kind identifies a container recognised from its leading bytes.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindWebP
	KindPDF
	KindGIF
	KindTIFF
	KindBMP
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindWebP:
		return "webp"
	case KindPDF:
		return "pdf"
	case KindGIF:
		return "gif"
	case KindTIFF:
		return "tiff"
	case KindBMP:
		return "bmp"
	default:
		return "unknown"
	}
}

func (k Kind) MimeType() string {
	switch k {
	case KindJPEG:
		return MimeJPEG
	case KindPNG:
		return MimePNG
	case KindWebP:
		return MimeWebP
	case KindPDF:
		return MimePDF
	case KindGIF:
		return "image/gif"
	case KindTIFF:
		return "image/tiff"
	case KindBMP:
		return "image/bmp"
	default:
		return ""
	}
}

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	pdfSig    = []byte("%PDF-")
	gifSig    = []byte("GIF8")
	bmpSig    = []byte("BM")
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
	riffSig   = []byte("RIFF")
	webpSig   = []byte("WEBP")
)

// Sniff inspects the leading bytes of data for known signatures.
func Sniff(data []byte) Kind {
	switch {
	case hasPrefix(data, jpegSig):
		return KindJPEG
	case hasPrefix(data, pngSig):
		return KindPNG
	case hasPrefix(data, riffSig) && len(data) >= 12 && hasPrefix(data[8:], webpSig):
		return KindWebP
	case hasPrefix(data, pdfSig):
		return KindPDF
	case hasPrefix(data, gifSig):
		return KindGIF
	case hasPrefix(data, tiffSigLE), hasPrefix(data, tiffSigBE):
		return KindTIFF
	case hasPrefix(data, bmpSig) && len(data) >= 26:
		return KindBMP
	}
	return KindUnknown
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
