package importer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Supported statement encodings.
const (
	EncodingAuto        = "auto"
	EncodingUTF8        = "utf-8"
	EncodingWindows1250 = "windows-1250"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw statement bytes to text. With EncodingAuto, data that
// is not valid UTF-8 is read as Windows-1250, the charset of mBank exports.
func Decode(data []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", EncodingAuto:
		data = bytes.TrimPrefix(data, utf8BOM)
		if utf8.Valid(data) {
			return string(data), nil
		}
		return decodeWindows1250(data)
	case EncodingUTF8, "utf8":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("input is not valid UTF-8")
		}
		return string(data), nil
	case EncodingWindows1250, "cp1250":
		return decodeWindows1250(data)
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func decodeWindows1250(data []byte) (string, error) {
	out, err := charmap.Windows1250.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding windows-1250: %w", err)
	}
	return string(out), nil
}
