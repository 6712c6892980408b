package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// geminiSystemPrompt pins the reply contract: one SQL: line block and one
// ANSWER: line block, so replies parse deterministically.
const geminiSystemPrompt = `You answer questions about urban datasets (population, districts, city features) backed by a read-only SQL database with two views:
  geographical_unit_view(geo_id, name, geo_level_id, city_id)   -- geo_level_id: 1 city, 2 district, 3 neighbourhood
  current_indicators_view(geo_id, indicator_name, value, year)
Reply with exactly two sections:
SQL: <one SELECT statement answering the question, or NONE if no query is needed>
ANSWER: <a short natural-language answer>
Never write statements that modify data.`

// GeminiAgent asks a Gemini model through the google genai client.
type GeminiAgent struct {
	client *genai.Client
	model  string
}

func NewGeminiAgent(ctx context.Context, apiKey, model string) (*GeminiAgent, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiAgent{client: client, model: model}, nil
}

func (a *GeminiAgent) Ask(ctx context.Context, question, transcript string) (Answer, error) {
	var prompt strings.Builder
	prompt.WriteString(geminiSystemPrompt)
	prompt.WriteString("\n\n")
	if transcript != "" {
		prompt.WriteString("Previous conversation:\n")
		prompt.WriteString(transcript)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Question: ")
	prompt.WriteString(question)

	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt.String()), nil)
	if err != nil {
		return Answer{}, classify(fmt.Errorf("generate content: %w", err), KindToolError)
	}

	answer, err := parseModelReply(result.Text())
	if err != nil {
		return Answer{}, &Error{Kind: KindParseError, Err: err}
	}
	return answer, nil
}

// parseModelReply extracts the SQL and ANSWER sections from a model reply.
// The reply format is part of the prompt contract; anything else is a parse
// error, not something to guess around.
func parseModelReply(reply string) (Answer, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Answer{}, fmt.Errorf("empty model reply")
	}

	var out Answer
	section := ""
	var sqlLines, answerLines []string
	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "SQL:"):
			section = "sql"
			sqlLines = append(sqlLines, strings.TrimSpace(trimmed[len("SQL:"):]))
		case strings.HasPrefix(upper, "ANSWER:"):
			section = "answer"
			answerLines = append(answerLines, strings.TrimSpace(trimmed[len("ANSWER:"):]))
		case section == "sql":
			sqlLines = append(sqlLines, trimmed)
		case section == "answer":
			answerLines = append(answerLines, trimmed)
		}
	}

	out.SQL = strings.TrimSpace(strings.Join(sqlLines, "\n"))
	if strings.EqualFold(out.SQL, "NONE") {
		out.SQL = ""
	}
	out.Answer = strings.TrimSpace(strings.Join(answerLines, "\n"))
	if out.Answer == "" {
		return Answer{}, fmt.Errorf("model reply missing ANSWER section")
	}
	return out, nil
}
