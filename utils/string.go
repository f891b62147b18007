package utils

import (
	"bytes"
	"compress/gzip"
	"io"
	"regexp"
)

// CompressBytes compresses the input using gzip at the given level
// (gzip.DefaultCompression when level is 0).
func CompressBytes(input []byte, level int) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	gzipWriter, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := gzipWriter.Write(input); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressBytes reverses CompressBytes.
func DecompressBytes(input []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()
	return io.ReadAll(gzipReader)
}

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFileName replaces characters that are not allowed in file names
// on common filesystems with underscores.
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}
