// Package logfile reads test logs from disk.
package logfile

import (
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names the character set a log was decoded from.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
)

// Read returns the contents of path as a string. Content that is not valid
// UTF-8 is decoded as Latin-1, which accepts any byte sequence.
func Read(path string) (string, Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read log file %s: %w", path, err)
	}
	content, enc, err := Decode(data)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode log file %s: %w", path, err)
	}
	return content, enc, nil
}

// Decode converts raw log bytes to a string.
func Decode(data []byte) (string, Encoding, error) {
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	return string(out), EncodingLatin1, nil
}
