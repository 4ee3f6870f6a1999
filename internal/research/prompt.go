package research

import "fmt"

const promptFormat = `Provide a concise summary followed by 5 key bullet points. Format your response clearly with a summary paragraph and bullet points starting with "-".`

// BuildPrompt turns a query and optional URL into a single instruction for
// the model, asking for a summary line followed by "-" bullets.
func BuildPrompt(query, url string) string {
	if url != "" {
		return fmt.Sprintf("You are a research assistant. Analyze this URL: %s\n\nResearch question: %s\n\n%s", url, query, promptFormat)
	}
	return fmt.Sprintf("You are a research assistant. Research question: %s\n\n%s", query, promptFormat)
}
