package openai

import (
	"fmt"
	"strings"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

const researchSystemPrompt = `You are a helpful historical research assistant specializing in newspaper archives.
Your role is to synthesize information from historical newspaper articles to answer questions accurately.
Always cite your sources using the provided source numbers.
Focus on factual information and historical context.
If information is unclear or contradictory between sources, acknowledge this.`

// Passage text in prompts is capped so a handful of long OCR chunks
// cannot blow past the model's context window.
const maxPromptPassage = 6000

func buildAnswerPrompt(question string, results []domain.SearchResult) string {
	var context strings.Builder
	for i, result := range results {
		if i > 0 {
			context.WriteString("\n---\n")
		}
		fmt.Fprintf(&context, "[Source %d] %s\nContent: %s\n", i+1, result.Citation(), clipPassage(result.Chunk.Content))
	}

	return fmt.Sprintf(`Based on the following historical newspaper articles, please answer this question: %s

Historical Sources:
%s

Please provide a comprehensive answer that:
1. Directly addresses the question
2. Synthesizes information from multiple sources
3. Includes specific dates, names, and events mentioned
4. Cites sources using [Source N] format
5. Provides historical context when relevant

If the sources don't contain enough information to fully answer the question, acknowledge this and explain what information is available.`, question, context.String())
}

func buildSourceAnalysisPrompt(question string, result domain.SearchResult) string {
	return fmt.Sprintf(`Analyze the following historical newspaper passage in relation to this research question: %s

Source: %s
Passage:
%s

Please provide a focused analysis that:
1. Summarizes what the passage reports
2. Explains how it relates to the research question
3. Notes specific dates, names, and events it contributes
4. Flags OCR artifacts or gaps that limit its reliability

Keep the analysis grounded in this passage alone; do not speculate beyond it.`, question, result.Citation(), clipPassage(result.Chunk.Content))
}

func clipPassage(text string) string {
	if len(text) <= maxPromptPassage {
		return text
	}
	return text[:maxPromptPassage]
}
