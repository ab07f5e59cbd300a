package agent

import (
	"context"
	"fmt"
)

// DefaultQuestion is used when the input carries no "question".
const DefaultQuestion = "What is Newton's second law?"

// ReferenceSteps returns the fixed problem-solving outline the built-in
// agents attach to every answer.
func ReferenceSteps() []string {
	return []string{
		"Identify known quantities",
		"Recall F = m * a",
		"Solve for the unknown",
		"Check units and reasonability",
	}
}

// Tutor is the reference agent. It echoes the question back with a canned
// outline and performs no reasoning.
type Tutor struct{}

// Invoke implements Agent.
func (Tutor) Invoke(_ context.Context, userID string, input, _ map[string]any) (map[string]any, error) {
	question := Question(input)
	return map[string]any{
		"message":    greeting(userID),
		"answer":     "Prompt: " + question,
		"next_steps": ReferenceSteps(),
	}, nil
}

// Question extracts input["question"], formatting non-string values, and
// falls back to DefaultQuestion when the key is absent.
func Question(input map[string]any) string {
	v, ok := input["question"]
	if !ok || v == nil {
		return DefaultQuestion
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func greeting(userID string) string {
	return fmt.Sprintf("Hello %s! Let's reason together.", userID)
}
