package main

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUTF16 returns s as NUL-terminated UTF-16LE and its length in units,
// terminator excluded
func encodeUTF16(s string) ([]byte, int, error) {
	encoded, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, 0, err
	}
	return append(encoded, 0, 0), len(encoded) / 2, nil
}
