package llm

import "fmt"

// InsightPrompt generates the prompt for synthesizing lifestyle insights
// from mined patterns.
func InsightPrompt(locationJSON, routineJSON string) string {
	return fmt.Sprintf(`Analyze the following life patterns discovered from GPS and activity data:

## Location Clusters (Frequently Visited Places):
%s

## Time Patterns (Routines):
%s

Based on these patterns, generate 2-3 meaningful insights about the person's lifestyle.
For each insight, provide:
1. A short title (habit name)
2. A description of the habit/pattern
3. Confidence score (0-1)

Rules:
- Only describe what the patterns actually support
- Return ONLY a JSON array, no other text

Return a JSON array:
[{
  "title": "Habit name",
  "description": "Description of the pattern/habit",
  "confidence": 0.8,
  "insight_type": "habit|routine|preference"
}]

If the patterns support no insight, return: []`, locationJSON, routineJSON)
}

// AnswerPrompt generates the prompt for answering a memory question from
// assembled event context.
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf(`You are a personal memory assistant. Answer the user's question using ONLY the event data below.

QUESTION: %s

EVENT DATA:
%s

Rules:
- Answer in the same language as the question
- Base the answer strictly on the events provided; do not invent places, people, or purchases
- If the data is insufficient, say so plainly
- Return ONLY a JSON object, no other text

Return a JSON object:
{"answer": "natural language answer", "reasoning": "one sentence on how the events support it"}`, question, context)
}
