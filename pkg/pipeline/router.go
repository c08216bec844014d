package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docchat-be/pkg/llm"
)

// routerHistoryWindow bounds how many prior turns the classifier sees.
const routerHistoryWindow = 4

// Router classifies a query into one of the three intents using a
// lightweight model call. It never answers the question itself.
type Router struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewRouter(llmProvider llm.LLMProvider, logger *log.Logger) *Router {
	return &Router{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Classify resolves the intent for a query given the most recent history.
// Values outside the allowed set are corrected to needs_retrieval: when in
// doubt we take the expensive path rather than refuse. A model error
// propagates to the caller; retries belong to the provider, not here.
func (r *Router) Classify(ctx context.Context, query string, history []llm.Message) (Intent, error) {
	prompt := r.buildPrompt(query, history)

	response, err := r.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		return "", fmt.Errorf("intent classification failed: %w", err)
	}

	intent := normalizeIntent(response)
	r.logger.Printf("[ROUTER] Intent: %s", intent)

	return intent, nil
}

func (r *Router) buildPrompt(query string, history []llm.Message) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent classifier for a document question-answering assistant.\n")
	prompt.WriteString("You do NOT answer questions. You only classify them.\n")
	prompt.WriteString("</system>\n\n")

	recent := history
	if len(recent) > routerHistoryWindow {
		recent = recent[len(recent)-routerHistoryWindow:]
	}
	if len(recent) > 0 {
		prompt.WriteString("<recent_conversation>\n")
		for _, msg := range recent {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, msg.Content))
		}
		prompt.WriteString("</recent_conversation>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent that best matches the query:\n\n")
	prompt.WriteString("needs_retrieval: The user asks about the content of their uploaded documents\n")
	prompt.WriteString("  - Use when: the answer requires looking at document text (facts, clauses, figures, summaries)\n")
	prompt.WriteString("  - Use when: unsure. Retrieval is the safe default.\n\n")
	prompt.WriteString("conversational: Casual chat or follow-up that needs no document lookup\n")
	prompt.WriteString("  - Use when: greetings, thanks, questions about the previous answer's wording\n\n")
	prompt.WriteString("out_of_scope: Unrelated to the user's documents or this assistant's purpose\n")
	prompt.WriteString("  - Use when: requests for general world knowledge, coding help, etc.\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY the intent label, nothing else:\n")
	prompt.WriteString("needs_retrieval | conversational | out_of_scope\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

// normalizeIntent maps the raw model output onto the allowed set, failing
// open toward needs_retrieval.
func normalizeIntent(response string) Intent {
	cleaned := strings.ToLower(strings.TrimSpace(response))
	cleaned = strings.Trim(cleaned, "\"'` .")

	switch {
	case strings.Contains(cleaned, string(IntentConversational)):
		return IntentConversational
	case strings.Contains(cleaned, string(IntentOutOfScope)):
		return IntentOutOfScope
	default:
		return IntentNeedsRetrieval
	}
}
