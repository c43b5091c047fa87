package assistant

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ReadPrompt returns the trimmed content of path, or "" when path is empty
// or unreadable.
func ReadPrompt(path string, log zerolog.Logger) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("prompt file not found or unreadable")
		return ""
	}
	return strings.TrimSpace(string(data))
}
