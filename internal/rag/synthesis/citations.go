package synthesis

import (
	"fmt"
	"regexp"
	"strings"
)

const markerPrefix = "[[source:"

var citationPattern = regexp.MustCompile(`\[\[source:([^\]]+)\]\]`)

// Marker renders the inline citation marker for a chunk.
func Marker(chunkId string) string {
	return fmt.Sprintf("%s%s]]", markerPrefix, chunkId)
}

// ExtractCitations returns every marker's chunk id in order of appearance, repeats included.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if id := strings.TrimSpace(m[1]); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ValidateCitations keeps candidates present in known, first occurrence only, in order.
// dropped lists the foreign ids that were removed.
func ValidateCitations(candidates []string, known map[string]struct{}) (valid []string, dropped []string) {
	seen := make(map[string]struct{}, len(candidates))
	valid = []string{}
	for _, id := range candidates {
		if _, ok := known[id]; !ok {
			dropped = append(dropped, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, id)
	}
	return valid, dropped
}

// StripForeignMarkers removes markers whose id is not in known so the answer text never shows them.
func StripForeignMarkers(text string, known map[string]struct{}) string {
	return citationPattern.ReplaceAllStringFunc(text, func(m string) string {
		id := strings.TrimSpace(citationPattern.FindStringSubmatch(m)[1])
		if _, ok := known[id]; ok {
			return m
		}
		return ""
	})
}
