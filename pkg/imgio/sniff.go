package imgio

import "net/http"

// Media types handled by this package.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
	MediaTypeWebP = "image/webp"
	MediaTypeBMP  = "image/bmp"
	MediaTypeTIFF = "image/tiff"
	MediaTypeHEIC = "image/heic"
	MediaTypeHEIF = "image/heif"
)

// DetectMediaType sniffs the media type from the leading bytes of data,
// never from a filename. http.DetectContentType covers the common raster
// formats but reports ISOBMFF containers as application/octet-stream and
// knows nothing about TIFF, so those two are checked explicitly.
func DetectMediaType(data []byte) string {
	if isHEIF(data) {
		return MediaTypeHEIC
	}
	if isTIFF(data) {
		return MediaTypeTIFF
	}
	return http.DetectContentType(data)
}

// isHEIF reports whether data starts with an ISOBMFF ftyp box carrying a
// HEIF brand. Layout: [4-byte box size]["ftyp"][4-byte major brand].
func isHEIF(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heim", "heis", "hevc", "mif1", "msf1":
		return true
	}
	return false
}

// isTIFF checks the little- and big-endian TIFF signatures.
func isTIFF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*"
}
