package services

import "github.com/tmc/langchaingo/prompts"

// NotFoundAnswer is returned verbatim when the document does not contain the answer.
const NotFoundAnswer = "I'm sorry, I could not find the answer in the provided document."

// GetAnswerPrompt defines the instructions the model answers under.
func GetAnswerPrompt() prompts.PromptTemplate {
	template := `You are a knowledgeable assistant.
Your job is to answer the user's question in detail using only the provided context.
If the answer is not found in the context, reply with: "` + NotFoundAnswer + `"
Explain concepts clearly, provide summaries when necessary, and do not refuse questions.

Context:
{{.context}}

Question:
{{.question}}

Detailed Answer:`

	return prompts.NewPromptTemplate(template, []string{"context", "question"})
}
