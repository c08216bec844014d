package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docchat-be/pkg/llm"
)

// reconcileThreshold is the minimum disagreement confidence worth escalating
// to the reconciler. Low-confidence objections are not worth a third model.
const reconcileThreshold = 0.7

// Verifier asks a second, independent model to check the primary answer
// strictly against the same source passages.
type Verifier struct {
	llmProvider llm.LLMProvider
	model       string
	logger      *log.Logger
}

func NewVerifier(llmProvider llm.LLMProvider, model string, logger *log.Logger) *Verifier {
	return &Verifier{
		llmProvider: llmProvider,
		model:       model,
		logger:      logger,
	}
}

// verdict is the JSON shape the verifier model is asked to return.
type verdict struct {
	Agrees     bool     `json:"agrees"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes"`
	Issues     []string `json:"issues"`
}

// Verify checks the primary answer against the source passages. It fails
// open: a transport error or unparseable response yields agreement with a
// note marking the failure, never a blocked answer. The returned bool is
// true only when the model reports disagreement with confidence above the
// escalation threshold.
func (v *Verifier) Verify(ctx context.Context, query Query, passages []RetrievedPassage, primaryAnswer string) (*VerificationResult, bool) {
	prompt := v.buildPrompt(query.Text, passages, primaryAnswer)

	response, err := v.llmProvider.Chat(ctx,
		[]llm.Message{{Role: "user", Content: prompt}},
		llm.WithModel(v.model), llm.WithTemperature(0.0),
	)
	if err != nil {
		v.logger.Printf("[VERIFY] Model call failed, failing open to agreement: %v", err)
		return &VerificationResult{
			Model:  v.model,
			Agrees: true,
			Notes:  fmt.Sprintf("verification unavailable: %v", err),
		}, false
	}

	var vd verdict
	if err := ExtractJSON(response, &vd); err != nil {
		v.logger.Printf("[VERIFY] Unparseable verdict, failing open to agreement: %v", err)
		return &VerificationResult{
			Model:  v.model,
			Agrees: true,
			Notes:  fmt.Sprintf("verification response unparseable: %v", err),
		}, false
	}

	result := &VerificationResult{
		Model:      v.model,
		Agrees:     vd.Agrees,
		Confidence: vd.Confidence,
		Notes:      vd.Notes,
		Issues:     vd.Issues,
	}

	shouldReconcile := !vd.Agrees && vd.Confidence > reconcileThreshold

	v.logger.Printf("[VERIFY] Agrees: %v (Confidence: %.2f, Escalate: %v)", vd.Agrees, vd.Confidence, shouldReconcile)

	return result, shouldReconcile
}

func (v *Verifier) buildPrompt(query string, passages []RetrievedPassage, primaryAnswer string) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an independent fact-checker. Another model answered a question using the source excerpts below.\n")
	prompt.WriteString("Check the answer STRICTLY against the excerpts. Do not use outside knowledge.\n")
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
	prompt.WriteString(fmt.Sprintf("<answer_to_check>\n%s\n</answer_to_check>\n\n", primaryAnswer))

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"agrees\": true,\n")
	prompt.WriteString("  \"confidence\": 0.9,\n")
	prompt.WriteString("  \"notes\": \"Brief assessment\",\n")
	prompt.WriteString("  \"issues\": [\"specific problem, if any\"]\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
