package matching

import (
	"regexp"

	"github.com/desertthunder/prematch/internal/models"
)

const (
	MinHashLen = 32
	MaxHashLen = 40
)

var hexRun = regexp.MustCompile(`(?i)[0-9a-f]+`)

// ExtractHash returns the first run of 32 to 40 hexadecimal characters in text.
//
// A run is delimited by non-hex characters or the ends of text, so longer runs are never truncated into a match.
func ExtractHash(text string) (string, bool) {
	for _, run := range hexRun.FindAllString(text, -1) {
		if len(run) >= MinHashLen && len(run) <= MaxHashLen {
			return run, true
		}
	}
	return "", false
}

// HashSource names one field of a hash candidate that may carry a digest.
type HashSource struct {
	Name string
	Text func(models.HashCandidate) string
}

var (
	ReleaseNameSource = HashSource{Name: "name", Text: func(c models.HashCandidate) string { return c.Name }}
	FileNameSource    = HashSource{Name: "file", Text: func(c models.HashCandidate) string { return c.FileName }}
)

// DefaultHashSources checks the release name before the file name.
var DefaultHashSources = []HashSource{ReleaseNameSource, FileNameSource}

// Extractor tries its sources in order; the first that yields a digest wins.
type Extractor struct {
	sources []HashSource
}

// NewExtractor creates an Extractor over sources, or [DefaultHashSources] when none are given.
func NewExtractor(sources ...HashSource) *Extractor {
	if len(sources) == 0 {
		sources = DefaultHashSources
	}
	return &Extractor{sources: sources}
}

// Extract returns the digest found in c and the name of the source it came from.
func (e *Extractor) Extract(c models.HashCandidate) (hash, source string, ok bool) {
	for _, s := range e.sources {
		if hash, ok := ExtractHash(s.Text(c)); ok {
			return hash, s.Name, true
		}
	}
	return "", "", false
}
