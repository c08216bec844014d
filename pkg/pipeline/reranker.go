package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"ai-docchat-be/pkg/llm"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultKeepLimit is how many passages survive reranking.
	DefaultKeepLimit = 5

	// scorePrefixLen bounds the passage text sent to the scoring model,
	// capping token cost per call.
	scorePrefixLen = 500

	// neutralScore substitutes for a failed per-passage scoring call so one
	// bad model call cannot drop the context entirely.
	neutralScore = 5.0
)

// Reranker scores retrieved passages against the query with a secondary
// model and keeps the most relevant ones.
type Reranker struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewReranker(llmProvider llm.LLMProvider, logger *log.Logger) *Reranker {
	return &Reranker{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Rerank keeps the top passages by model-scored relevance. When the input
// already fits within keep it is returned unchanged with no model calls.
// Scoring calls run concurrently; individual failures fall back to a
// neutral mid-range score. The sort is stable: ties retain retrieval order.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []RetrievedPassage, keep int) []RetrievedPassage {
	if keep <= 0 {
		keep = DefaultKeepLimit
	}
	if len(passages) <= keep {
		return passages
	}

	scores := make([]float64, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	for i := range passages {
		g.Go(func() error {
			score, err := r.scorePassage(gctx, query, passages[i].Text)
			if err != nil {
				r.logger.Printf("[RERANK] Scoring passage %d failed, using neutral score: %v", i, err)
				score = neutralScore
			}
			scores[i] = score
			return nil
		})
	}
	// Workers never return errors; failures degrade to the neutral score.
	_ = g.Wait()

	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	kept := make([]RetrievedPassage, 0, keep)
	for _, idx := range order[:keep] {
		kept = append(kept, passages[idx])
	}

	r.logger.Printf("[RERANK] Kept %d of %d passages", len(kept), len(passages))

	return kept
}

func (r *Reranker) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	truncated := passage
	if len(truncated) > scorePrefixLen {
		truncated = truncated[:scorePrefixLen]
	}

	var prompt strings.Builder
	prompt.WriteString("Rate how relevant the following passage is to the question on a scale of 0-10.\n")
	prompt.WriteString("10 = directly answers the question. 0 = completely irrelevant.\n\n")
	prompt.WriteString(fmt.Sprintf("Question: %s\n\n", query))
	prompt.WriteString(fmt.Sprintf("Passage:\n%s\n\n", truncated))
	prompt.WriteString("Respond with ONLY the number, nothing else.")

	response, err := r.llmProvider.Generate(ctx, prompt.String(), llm.WithTemperature(0.0), llm.WithMaxTokens(8))
	if err != nil {
		return 0, err
	}

	return parseScore(response)
}

func parseScore(response string) (float64, error) {
	cleaned := strings.TrimSpace(response)
	// Take the leading numeric run; models occasionally append "/10" or prose.
	end := 0
	for end < len(cleaned) && (cleaned[end] == '.' || (cleaned[end] >= '0' && cleaned[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no numeric score in %q", response)
	}

	score, err := strconv.ParseFloat(cleaned[:end], 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", response, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}
