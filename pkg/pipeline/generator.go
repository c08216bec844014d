package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docchat-be/pkg/llm"
)

const (
	// conversationalHistoryWindow bounds the trailing history used for
	// casual chat generation.
	conversationalHistoryWindow = 3

	// excerptLen bounds citation excerpts so payloads stay small.
	excerptLen = 300
)

// Generator produces the primary answer, either as a single completion or
// as an incremental token stream, using intent-specific system prompts.
type Generator struct {
	llmProvider llm.LLMProvider
	model       string
	logger      *log.Logger
}

func NewGenerator(llmProvider llm.LLMProvider, model string, logger *log.Logger) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		model:       model,
		logger:      logger,
	}
}

// Model returns the configured generator model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Generate produces the full answer in one blocking call.
func (g *Generator) Generate(ctx context.Context, query Query, intent Intent, passages []RetrievedPassage) (string, []Citation, error) {
	messages, citations := g.assemble(query, intent, passages)

	answer, err := g.llmProvider.Chat(ctx, messages, llm.WithModel(g.model))
	if err != nil {
		return "", nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return answer, citations, nil
}

// GenerateStream produces the answer as a token stream, forwarding each
// fragment to onToken in generation order with no reordering or buffering.
// Returns the accumulated text.
func (g *Generator) GenerateStream(ctx context.Context, query Query, intent Intent, passages []RetrievedPassage, onToken llm.TokenHandler) (string, []Citation, error) {
	messages, citations := g.assemble(query, intent, passages)

	answer, err := g.llmProvider.ChatStream(ctx, messages, onToken, llm.WithModel(g.model))
	if err != nil {
		return "", nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return answer, citations, nil
}

// BuildCitations returns the citations that prompt assembly would produce
// for the retained passages, in the same numbered order used in the prompt.
func (g *Generator) BuildCitations(passages []RetrievedPassage) []Citation {
	citations := make([]Citation, 0, len(passages))
	for _, p := range passages {
		citations = append(citations, Citation{
			DocumentId:   p.DocumentId,
			DocumentName: p.DocumentName,
			ChunkId:      p.ChunkId,
			Page:         p.Page,
			Region:       p.Region,
			Score:        p.Score,
			Excerpt:      truncate(p.Text, excerptLen),
		})
	}
	return citations
}

// assemble builds the message history for the model and, for the retrieval
// path, the citations matching the numbered passages. Citation index and
// in-text bracket references stay consistent because both come from the
// same numbered loop.
func (g *Generator) assemble(query Query, intent Intent, passages []RetrievedPassage) ([]llm.Message, []Citation) {
	switch intent {
	case IntentOutOfScope:
		return []llm.Message{
			{Role: "system", Content: outOfScopeSystemPrompt},
			{Role: "user", Content: query.Text},
		}, nil

	case IntentConversational:
		messages := []llm.Message{{Role: "system", Content: conversationalSystemPrompt}}
		recent := query.History
		if len(recent) > conversationalHistoryWindow {
			recent = recent[len(recent)-conversationalHistoryWindow:]
		}
		messages = append(messages, recent...)
		messages = append(messages, llm.Message{Role: "user", Content: query.Text})
		return messages, nil

	default:
		return g.assembleRetrieval(query, passages)
	}
}

func (g *Generator) assembleRetrieval(query Query, passages []RetrievedPassage) ([]llm.Message, []Citation) {
	citations := g.BuildCitations(passages)

	var user strings.Builder

	if len(passages) == 0 {
		user.WriteString("No relevant excerpts were found in the selected documents for this question.\n")
		user.WriteString("Tell the user that the documents do not appear to contain the answer. Do NOT invent one.\n\n")
	} else {
		user.WriteString("Answer the question using ONLY the numbered excerpts below.\n")
		user.WriteString("Cite excerpts inline with bracket references like [1] or [2][3].\n\n")
		for i, p := range passages {
			user.WriteString(fmt.Sprintf("[%d] (%s, page %d)\n%s\n\n", i+1, p.DocumentName, p.Page, p.Text))
			g.logger.Printf("[GENERATION] Excerpt [%d]: %s p.%d (%d chars)", i+1, p.DocumentName, p.Page, len(p.Text))
		}
	}

	user.WriteString(fmt.Sprintf("Question: %s", query.Text))

	messages := []llm.Message{{Role: "system", Content: documentQASystemPrompt}}
	messages = append(messages, query.History...)
	messages = append(messages, llm.Message{Role: "user", Content: user.String()})

	return messages, citations
}

const documentQASystemPrompt = `You are a careful assistant answering questions about the user's uploaded documents.

RULES:
1. Answer ONLY from the provided excerpts. If they do not contain the answer, say so.
2. Cite supporting excerpts inline using their bracket numbers, e.g. [1].
3. Quote exact figures, dates, and clause numbers verbatim where available.
4. Be direct. Do not ask whether the user wants you to answer.`

const conversationalSystemPrompt = `You are a friendly assistant for a document question-answering app.
Keep replies short and casual. Do not invent document content; if the user
asks about their documents, suggest they ask a specific question about them.`

const outOfScopeSystemPrompt = `You are an assistant that only answers questions about the user's uploaded
documents. The current question is outside that scope. Say so briefly and
politely, and suggest asking about the documents instead. Do not answer the
out-of-scope question itself.`

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
