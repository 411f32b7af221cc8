package document

import (
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// jsoncToJSON strips comments and trailing commas. JSON is valid YAML, so the
// result goes through the same ordered decoder.
func jsoncToJSON(data []byte) []byte {
	return jsonc.ToJSON(data)
}

// FormatFor picks the decoder for a file by its extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	}
	return FormatYAML
}
