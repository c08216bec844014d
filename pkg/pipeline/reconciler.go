package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docchat-be/pkg/llm"
)

// Reconciler asks a third, stronger reasoning model to adjudicate between
// the primary answer and the verifier's objection, using the original
// sources as ground truth.
type Reconciler struct {
	llmProvider llm.LLMProvider
	model       string
	logger      *log.Logger
}

func NewReconciler(llmProvider llm.LLMProvider, model string, logger *log.Logger) *Reconciler {
	return &Reconciler{
		llmProvider: llmProvider,
		model:       model,
		logger:      logger,
	}
}

// ruling is the JSON shape the reconciler model is asked to return.
type ruling struct {
	Chosen      string  `json:"chosen"`
	Resolution  string  `json:"resolution"`
	FinalAnswer string  `json:"final_answer"`
	Confidence  float64 `json:"confidence"`
}

// Reconcile resolves a confident disagreement. Arbitration failure must
// never leave the caller without an answer: on any error or unparseable
// response it defaults to keeping the primary answer at confidence 0.5.
func (r *Reconciler) Reconcile(ctx context.Context, query Query, passages []RetrievedPassage, primaryAnswer string, verification *VerificationResult) *ReconciliationResult {
	prompt := r.buildPrompt(query.Text, passages, primaryAnswer, verification)

	response, err := r.llmProvider.Chat(ctx,
		[]llm.Message{{Role: "user", Content: prompt}},
		llm.WithModel(r.model), llm.WithTemperature(0.0),
	)
	if err != nil {
		r.logger.Printf("[RECONCILE] Model call failed, keeping primary answer: %v", err)
		return r.fallback(primaryAnswer, fmt.Sprintf("reconciliation unavailable: %v", err))
	}

	var rl ruling
	if err := ExtractJSON(response, &rl); err != nil {
		r.logger.Printf("[RECONCILE] Unparseable ruling, keeping primary answer: %v", err)
		return r.fallback(primaryAnswer, fmt.Sprintf("reconciliation response unparseable: %v", err))
	}

	switch rl.Chosen {
	case ChosenPrimary, ChosenVerification, ChosenSynthesized:
	default:
		r.logger.Printf("[RECONCILE] Unknown choice %q, keeping primary answer", rl.Chosen)
		return r.fallback(primaryAnswer, fmt.Sprintf("reconciler returned unknown choice %q", rl.Chosen))
	}

	if rl.FinalAnswer == "" {
		rl.FinalAnswer = primaryAnswer
	}

	r.logger.Printf("[RECONCILE] Chose %s (Confidence: %.2f)", rl.Chosen, rl.Confidence)

	return &ReconciliationResult{
		Model:       r.model,
		Chosen:      rl.Chosen,
		Resolution:  rl.Resolution,
		FinalAnswer: rl.FinalAnswer,
		Confidence:  rl.Confidence,
	}
}

func (r *Reconciler) fallback(primaryAnswer, note string) *ReconciliationResult {
	return &ReconciliationResult{
		Model:       r.model,
		Chosen:      ChosenPrimary,
		Resolution:  note,
		FinalAnswer: primaryAnswer,
		Confidence:  0.5,
	}
}

func (r *Reconciler) buildPrompt(query string, passages []RetrievedPassage, primaryAnswer string, verification *VerificationResult) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("Two models disagree about an answer. You are the arbiter.\n")
	prompt.WriteString("Use ONLY the source excerpts below as ground truth and decide which side is right,\n")
	prompt.WriteString("or synthesize a corrected answer if both are partially right.\n")
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<sources>\n")
	for i, p := range passages {
		prompt.WriteString(fmt.Sprintf("[%d] (%s, page %d)\n%s\n\n", i+1, p.DocumentName, p.Page, p.Text))
	}
	if len(passages) == 0 {
		prompt.WriteString("(no excerpts were retrieved)\n")
	}
	prompt.WriteString("</sources>\n\n")

	prompt.WriteString(fmt.Sprintf("<question>\n%s\n</question>\n\n", query))
	prompt.WriteString(fmt.Sprintf("<primary_answer>\n%s\n</primary_answer>\n\n", primaryAnswer))

	prompt.WriteString("<verifier_objection>\n")
	prompt.WriteString(fmt.Sprintf("Notes: %s\n", verification.Notes))
	for _, issue := range verification.Issues {
		prompt.WriteString(fmt.Sprintf("- %s\n", issue))
	}
	prompt.WriteString("</verifier_objection>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"chosen\": \"primary|verification|synthesized\",\n")
	prompt.WriteString("  \"resolution\": \"Why you ruled this way\",\n")
	prompt.WriteString("  \"final_answer\": \"The full text of the answer the user should see\",\n")
	prompt.WriteString("  \"confidence\": 0.9\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
