package services

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/docqa/models"
)

// DefaultMaxContextChars bounds the context handed to the model.
const DefaultMaxContextChars = 12000

// Answerer generates an answer to a question from retrieved chunks.
type Answerer struct {
	generator       Generator
	policy          *CallPolicy
	prompt          prompts.PromptTemplate
	maxContextChars int
}

// NewAnswerer creates an answerer. maxContextChars of 0 selects the default;
// a negative value disables the bound.
func NewAnswerer(generator Generator, policy *CallPolicy, maxContextChars int) *Answerer {
	if maxContextChars == 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Answerer{
		generator:       generator,
		policy:          policy,
		prompt:          GetAnswerPrompt(),
		maxContextChars: maxContextChars,
	}
}

// Answer asks the model question with the chunks as its only context.
func (a *Answerer) Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error) {
	prompt, err := a.prompt.Format(map[string]any{
		"context":  BuildContext(chunks, a.maxContextChars),
		"question": question,
	})
	if err != nil {
		return "", newError(CodeInternal, "answer", "could not render the prompt", err)
	}

	var out string
	err = a.policy.Do(ctx, "generate", func(ctx context.Context) error {
		var err error
		out, err = a.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return "", newError(CodeGenerationProvider, "answer", "generation provider failed", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", newError(CodeGenerationProvider, "answer", "generation provider returned an empty answer", nil)
	}
	if strings.Contains(out, NotFoundAnswer) {
		return NotFoundAnswer, nil
	}
	return out, nil
}

// BuildContext joins chunk texts with blank lines in rank order. Whole chunks
// are added until the next one would exceed maxChars runes; a first chunk
// longer than the budget is cut to it. maxChars < 0 means unbounded.
func BuildContext(chunks []models.Chunk, maxChars int) string {
	const sep = "\n\n"
	var sb strings.Builder
	used := 0
	for i, c := range chunks {
		n := len([]rune(c.Text))
		if i > 0 {
			n += len(sep)
		}
		if maxChars >= 0 && used+n > maxChars {
			if i == 0 {
				sb.WriteString(string([]rune(c.Text)[:maxChars]))
			}
			break
		}
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(c.Text)
		used += n
	}
	return sb.String()
}
