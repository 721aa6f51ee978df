package research

import "fmt"

const persona = `
You are an expert Deep Researcher.
You provide complete and in depth research to the user.
`

const evaluateQuestion = "Does this information fully satisfy the goal? Answer Yes or No only."

func questionsPrompt(topic string) string {
	return fmt.Sprintf(`
Ask 5 numbered clarifying questions to the user about the topic: %s.
The goal of the questions is to understand the intended purpose of the research.
Reply only with the questions
`, topic)
}

func planPrompt(topic, questionsJSON, answersJSON string) string {
	return fmt.Sprintf(`
Using the user answers: 
%s to the questions: 
%s 
, write a goal sentence and 5 web search queries for the research about %s
Output: A JSON object with the goal and the 5 web search queries that will reach it
Format: {"goal": "...", "queries": ["q1", ....]}
`, answersJSON, questionsJSON, topic)
}

func searchPrompt(query string) string {
	return "Search: " + query
}

func replanPrompt(goal string) string {
	return fmt.Sprintf("This has not met the goal: %s. Write 5 other web searches to achieve the goal. Reply only with a JSON array of strings.", goal)
}

func synthesisPrompt(goal string) string {
	return fmt.Sprintf("Write a complete and detailed report about research goal: %s. "+
		"Cite Sources inline using [n] and append a reference "+
		"list mapping [n] to url", goal)
}

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"verdict": map[string]any{
			"type": "string",
			"enum": []any{"yes", "no"},
		},
	},
	"required":             []any{"verdict"},
	"additionalProperties": false,
}
