package providers

import (
	"strconv"
	"strings"
)

// JudgeInstruction is the system turn sent to every judge.
const JudgeInstruction = `You are a strict evaluator comparing answers written by other AI models to the same question.

Follow these steps in order:
1. Solve the question yourself, independently, and derive your own final answer. Do not look at the candidate answers while doing this.
2. For each candidate, find its stated final answer and check whether it agrees exactly with yours: same values, same units, same key facts.
3. If one or more candidates agree with your answer, choose the best of those.
4. If none agree, choose the candidate that is least wrong.

Return ONLY a single JSON object with keys:
"winner_model_id": string (the model_id of the chosen candidate, copied exactly),
"reasoning": string (brief).
No Markdown, no code fences, no extra text.`

// JudgeCandidate is an answer shown to a judge.
type JudgeCandidate struct {
	BackendID string
	Text      string
}

// BuildJudgePrompt renders the user turn: the question followed by every
// candidate, each labelled with an ordinal and its model id.
func BuildJudgePrompt(question string, candidates []JudgeCandidate) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nCandidate answers:\n")
	for i, c := range candidates {
		b.WriteString("\n--- Candidate ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" | model_id: ")
		b.WriteString(c.BackendID)
		b.WriteString(" ---\n")
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildJudgeRequest returns the deterministic judge request for judgeID.
func BuildJudgeRequest(judgeID, question string, candidates []JudgeCandidate) ChatRequest {
	return ChatRequest{
		Model: judgeID,
		Messages: []Message{
			{Role: RoleSystem, Content: TextContent(JudgeInstruction)},
			{Role: RoleUser, Content: TextContent(BuildJudgePrompt(question, candidates))},
		},
		Temperature: Float(0),
	}
}
