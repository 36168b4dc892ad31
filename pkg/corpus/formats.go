package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrUnknownFormat is returned for files whose extension names no supported format.
var ErrUnknownFormat = errors.New("unknown corpus format")

// FileFormat represents different corpus file formats
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatJSON               // JSON array or {"choices": [...]} object
	FormatTOML               // [[choices]] tables
	FormatMsgpack            // msgpack array or map, same shape as JSON
)

// FormatInfo contains metadata about a corpus file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatJSON: {
		Format:      FormatJSON,
		Description: "JSON Corpus",
		Extensions:  []string{".json"},
		MinSize:     2, // []
	},
	FormatTOML: {
		Format:      FormatTOML,
		Description: "TOML Corpus",
		Extensions:  []string{".toml"},
		MinSize:     1,
	},
	FormatMsgpack: {
		Format:      FormatMsgpack,
		Description: "Msgpack Corpus",
		Extensions:  []string{".msgpack", ".mpk"},
		MinSize:     1, // fixarray header
	},
}

// String returns the format description.
func (f FileFormat) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "Unknown"
}

// DetectFormat returns the format of a file from its extension.
func DetectFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for format, info := range supportedFormats {
		for _, e := range info.Extensions {
			if e == ext {
				return format, nil
			}
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnknownFormat, filename)
}

// ValidateFile checks that a file exists, has a known extension and is large
// enough for its format.
func ValidateFile(filename string) (FileFormat, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return FormatUnknown, err
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		return format, fmt.Errorf("failed to stat file %s: %w", filename, err)
	}
	if fileInfo.IsDir() {
		return format, fmt.Errorf("%s is a directory", filename)
	}

	info := supportedFormats[format]
	if fileInfo.Size() < info.MinSize {
		return format, fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fileInfo.Size(), info.Description, info.MinSize)
	}

	log.Debugf("Corpus file %s validated as %s", filename, info.Description)
	return format, nil
}

// ListSupportedFormats returns all supported formats ordered by format id.
func ListSupportedFormats() []FormatInfo {
	formats := make([]FormatInfo, 0, len(supportedFormats))
	for f := FormatJSON; f <= FormatMsgpack; f++ {
		formats = append(formats, supportedFormats[f])
	}
	return formats
}
