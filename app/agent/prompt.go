package agent

import (
	"strings"
	"text/template"

	"docchat/types"
)

// Turns of conversation history included in a prompt.
const historyTurns = 6

var answerTemplate = template.Must(template.New("answer").Parse(
	`Answer the question based only on the following context:
{{.Context}}
{{- if .History}}

Earlier conversation, for reference only. Facts must still come from the context above:
{{- range .History}}
{{.Role}}: {{.Content}}
{{- end}}
{{- end}}

Question: {{.Question}}

If the question is about filling a form, provide specific instructions on what to write in each field found in the context.
`))

var translateTemplate = template.Must(template.New("translate").Parse(
	`Translate the following text to {{.Language}}. Maintain the original formatting structure (paragraphs, lists) as much as possible. Do not add introductory text.

Text:
{{.Text}}`))

type answerData struct {
	Context  string
	Question string
	History  []types.HistoryTurn
}

type translateData struct {
	Language string
	Text     string
}

func buildAnswerPrompt(context, question string, history []types.HistoryTurn) (string, error) {
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	var b strings.Builder
	err := answerTemplate.Execute(&b, answerData{
		Context:  context,
		Question: question,
		History:  history,
	})
	return b.String(), err
}

func buildTranslatePrompt(language, text string) (string, error) {
	var b strings.Builder
	err := translateTemplate.Execute(&b, translateData{Language: language, Text: text})
	return b.String(), err
}
