package installer

import (
	"fmt"
	"regexp"
	"strings"
)

type SourceType string

const (
	SourceHuggingFace SourceType = "huggingface"
	SourceCivitai     SourceType = "civitai"
	SourceFile        SourceType = "file"
	SourceDirect      SourceType = "direct"
)

// ModelSource is a parsed model identifier. Location carries the
// scheme-stripped payload, Original the string the user typed.
type ModelSource struct {
	Type     SourceType
	Location string
	Original string
}

var bareRepoPattern = regexp.MustCompile(`^[\w][\w.-]*/[\w][\w.-]*$`)

// ParseModelSource classifies an identifier. Bare "org/repo" strings are
// HuggingFace repos; local paths must be absolute, home-relative or start
// with "./" so they cannot be mistaken for repo IDs.
func ParseModelSource(source string) (*ModelSource, error) {
	if source == "" {
		return nil, fmt.Errorf("empty model source")
	}

	ms := &ModelSource{Original: source}

	switch {
	case strings.HasPrefix(source, "hf:"):
		ms.Type = SourceHuggingFace
		ms.Location = strings.TrimPrefix(source, "hf:")
	case strings.Contains(source, "civitai.com"):
		ms.Type = SourceCivitai
		ms.Location = source
	case strings.HasPrefix(source, "file:"):
		ms.Type = SourceFile
		ms.Location = strings.TrimPrefix(source, "file:")
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		ms.Type = SourceDirect
		ms.Location = source
	case looksLikeLocalPath(source):
		ms.Type = SourceFile
		ms.Location = source
	case bareRepoPattern.MatchString(source):
		ms.Type = SourceHuggingFace
		ms.Location = source
	default:
		return nil, fmt.Errorf("unsupported model source: %s", source)
	}

	return ms, nil
}

func looksLikeLocalPath(source string) bool {
	return strings.HasPrefix(source, "/") ||
		strings.HasPrefix(source, "./") ||
		strings.HasPrefix(source, "../") ||
		strings.HasPrefix(source, "~")
}
