package answer

import (
	"fmt"
	"strings"

	"github.com/reliefhq/relief/internal/chunk"
	"github.com/reliefhq/relief/internal/vectorstore"
)

// systemPrompt frames the model as a pressure-relief-valve specialist.
const systemPrompt = "You are a specialist engineer for industrial pressure relief valves (PRV). " +
	"You analyze requirements (process fluid, set pressure, temperature, flow rate, code/standard like ASME/API), materials, and certifications. " +
	"Use only provided context documents and your domain knowledge to recommend options, trade-offs, sizing approaches, and standards compliance. " +
	"Return clear, actionable guidance with assumptions, and cite sources by their source URI when relevant."

const promptInstructions = "Answer the user question using only the CONTEXT. " +
	"If the answer is not in the context, say you do not have sufficient information. " +
	"Include a short bullet list of recommended next steps."

// buildPrompt assembles the grounding prompt from the nearest matches,
// stopping before the context exceeds the token budget. It returns the
// prompt and how many matches made it in; the nearest match is always
// included so one oversized chunk cannot starve the answer.
func (o *Orchestrator) buildPrompt(question string, matches *vectorstore.QueryResult) (string, int) {
	var contexts []string
	budget := o.maxContextTokens
	used := 0
	for i, text := range matches.Texts {
		cost := chunk.Count(text)
		if i > 0 && cost > budget {
			break
		}
		contexts = append(contexts, text)
		budget -= cost
		used = i + 1
	}

	var sources []string
	seen := map[string]bool{}
	for i := 0; i < used; i++ {
		src := matches.Metadatas[i]["source"]
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, "- "+src)
	}

	prompt := fmt.Sprintf("CONTEXT:\n%s\n\nSOURCES:\n%s\n\nQUESTION:\n%s\n\n%s",
		strings.Join(contexts, "\n\n"),
		strings.Join(sources, "\n"),
		question,
		promptInstructions,
	)
	return prompt, used
}
