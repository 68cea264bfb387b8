package chat

import (
	"fmt"
	"strings"
)

const condenseQuestionTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const answerTemplate = `Answer the question based only on the following context:
%s

Question: %s`

// formatChatHistory renders prior turns as alternating Human:/Assistant:
// lines in chronological order. Empty history renders as an empty block.
func formatChatHistory(history []HistoryTurn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("Human: %s\nAssistant: %s", turn.Human, turn.Assistant))
	}
	return strings.Join(lines, "\n")
}

func renderCondensePrompt(history []HistoryTurn, question string) string {
	return fmt.Sprintf(condenseQuestionTemplate, formatChatHistory(history), question)
}

func renderAnswerPrompt(context, question string) string {
	return fmt.Sprintf(answerTemplate, context, question)
}
