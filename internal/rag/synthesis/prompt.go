package synthesis

import (
	"fmt"
	"strings"

	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
)

const insufficientContext = "The provided sources do not contain enough information to answer this question."

var systemPrompt = strings.Join([]string{
	"You are a research assistant answering questions about academic journal articles.",
	"Answer using only the numbered source passages supplied by the user. Do not use outside knowledge.",
	"After every sentence that uses a source, cite it inline with its marker exactly as shown, for example " + Marker("CHUNK_ID") + ".",
	"Only cite markers that appear in the supplied sources. Never invent a marker.",
	"If the sources are insufficient, reply exactly: \"" + insufficientContext + "\"",
}, "\n")

// BuildPrompt returns the system and user prompts for a query and its ranked results.
func BuildPrompt(query string, results []commonModels.SearchResult) (string, string) {
	var b strings.Builder
	b.WriteString("Sources:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Marker(r.ChunkId))
		fmt.Fprintf(&b, "Journal: %s", r.Metadata.JournalName)
		if r.Metadata.Year != 0 {
			fmt.Fprintf(&b, " (%d)", r.Metadata.Year)
		}
		fmt.Fprintf(&b, "; section: %s\n%s\n\n", r.Metadata.Section, r.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", query)
	return systemPrompt, b.String()
}
