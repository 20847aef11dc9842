package chatdb

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

// Modern messages leave the text column NULL and carry the body as an
// NSKeyedArchiver typedstream blob. The first NSString payload in the
// stream is the plain message text: it follows the class name, a fixed
// marker sequence ending in '+', then a length-prefixed UTF-8 run.
var nsStringMarker = []byte("NSString")

// ExtractAttributedText best-effort decodes the plain text out of an
// attributedBody blob. Any malformed input yields "" rather than an error;
// a message decoded to empty text is dropped downstream.
func ExtractAttributedText(blob []byte) string {
	idx := bytes.Index(blob, nsStringMarker)
	if idx < 0 {
		return ""
	}
	rest := blob[idx+len(nsStringMarker):]

	plus := bytes.IndexByte(rest, '+')
	if plus < 0 || plus > 8 {
		return ""
	}
	rest = rest[plus+1:]
	if len(rest) == 0 {
		return ""
	}

	var length int
	switch rest[0] {
	case 0x81:
		if len(rest) < 3 {
			return ""
		}
		length = int(binary.LittleEndian.Uint16(rest[1:3]))
		rest = rest[3:]
	case 0x82:
		if len(rest) < 5 {
			return ""
		}
		length = int(binary.LittleEndian.Uint32(rest[1:5]))
		rest = rest[5:]
	default:
		if rest[0] >= 0x80 {
			return ""
		}
		length = int(rest[0])
		rest = rest[1:]
	}

	if length <= 0 || length > len(rest) {
		return ""
	}
	text := rest[:length]
	if !utf8.Valid(text) {
		return ""
	}
	return string(text)
}
