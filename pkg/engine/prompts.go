package engine

import (
	"fmt"
	"strings"

	"github.com/rhuss/openresearch/pkg/api"
)

// maxHitsPerStep bounds the hits per query embedded in the report prompt.
const maxHitsPerStep = 5

var planGuidance = map[string]string{
	"surface":  "Focus on basic overview and fundamental concepts. 3-4 queries covering general information.",
	"standard": "Cover key aspects, recent developments, and practical applications. 4-5 queries for comprehensive coverage.",
	"deep":     "Include detailed analysis, expert opinions, technical details, and multiple perspectives. 5-6 queries for thorough investigation.",
}

var reportInstructions = map[string]string{
	"surface":  "Write a concise overview (2-3 sections) focusing on key concepts and basic understanding.",
	"standard": "Create a comprehensive report (4-6 sections) covering main aspects, recent developments, and practical implications.",
	"deep":     "Produce an in-depth analysis (6+ sections) including technical details, multiple perspectives, trends, and expert insights.",
}

// promptDepth is the depth word the prompts use. Brief tasks get the
// "surface" guidance.
func promptDepth(d api.Depth) string {
	switch d {
	case api.DepthBrief:
		return "surface"
	case api.DepthDeep:
		return "deep"
	default:
		return "standard"
	}
}

func clarifyingPrompt(topic string, depth api.Depth) string {
	var b strings.Builder
	b.WriteString("You are a research assistant helping to clarify a research topic before conducting web searches.\n\n")
	fmt.Fprintf(&b, "Research Topic: %s\n", topic)
	fmt.Fprintf(&b, "Research Depth: %s\n\n", promptDepth(depth))
	b.WriteString("Your task is to ask 1-3 clarifying questions that are RELEVANT to this specific topic. " +
		"Think critically about what dimensions of this topic actually matter:\n" +
		"- Ask about time frame/scope ONLY if it's actually relevant to understanding this topic\n" +
		"- Ask about geography ONLY if location matters for this topic\n" +
		"- Ask about audience/use case ONLY if different stakeholders would have different needs\n" +
		"- Ask about specific aspects/angles that would help narrow the focus\n" +
		"- Ask about technical depth ONLY for technical topics\n\n" +
		"Do NOT ask irrelevant questions. If a question wouldn't actually help clarify this specific topic, skip it.\n" +
		"If the topic is already very specific and clear, you can provide an empty questions array.\n\n" +
		"You can create two types of questions:\n" +
		"1. TEXT QUESTIONS: For open-ended responses where users can type their answer\n" +
		"2. MULTIPLE CHOICE: For questions with predefined options users can select from\n\n" +
		"Return ONLY valid JSON in this exact format:\n" +
		"{\n" +
		"  \"questions\": [\n" +
		"    {\"question\": \"Your question here?\", \"type\": \"text or multiple_choice\", \"options\": [\"option1\", \"option2\"] if multiple_choice else null, \"context\": \"Brief explanation of why this matters\"}\n" +
		"  ],\n" +
		"  \"topic\": \"research topic\"\n" +
		"}\n\n" +
		"No additional text, explanations, or formatting outside the JSON.")
	return b.String()
}

func planPrompt(topic string, depth api.Depth, answers []string) string {
	word := promptDepth(depth)

	var clarifications string
	if len(answers) > 0 {
		lines := make([]string, len(answers))
		for i, a := range answers {
			lines[i] = "- " + a
		}
		clarifications = "\n\nUser provided these clarifications:\n" + strings.Join(lines, "\n") + "\n"
	}

	var b strings.Builder
	b.WriteString("You are a research planning expert. Create a strategic web search plan for comprehensive research on the given topic.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Research Depth: %s - %s%s\n\n", word, planGuidance[word], clarifications)
	b.WriteString("Requirements:\n" +
		"- Generate diverse, specific search queries that will uncover different angles and aspects\n" +
		"- Each query should target different information sources (news, academic, industry, technical, etc.)\n" +
		"- Include both current/recent information and foundational knowledge\n" +
		"- Avoid redundant or overly similar queries\n" +
		"- Focus on authoritative and reliable sources\n" +
		"- Incorporate the user's clarifications to make searches more targeted\n\n" +
		"Return ONLY valid JSON in this exact format:\n" +
		`{"topic": "research topic", "queries": [{"query": "specific search terms", "rationale": "why this search is important"}]}` + "\n\n" +
		"No additional text, explanations, or formatting.")
	return b.String()
}

func reportPrompt(topic string, steps []api.SearchStep, depth api.Depth) string {
	word := promptDepth(depth)

	blocks := make([]string, 0, len(steps))
	for _, s := range steps {
		hits := s.Hits
		if len(hits) > maxHitsPerStep {
			hits = hits[:maxHitsPerStep]
		}
		lines := make([]string, len(hits))
		for i, h := range hits {
			summary := "No summary available"
			if h.Snippet != nil && *h.Snippet != "" {
				summary = *h.Snippet
			}
			lines[i] = fmt.Sprintf("  • %s\n    Source: %s\n    Summary: %s", h.Title, h.URL, summary)
		}
		blocks = append(blocks, fmt.Sprintf("**Query**: %s\n**Top Results**:\n", s.Query)+strings.Join(lines, "\n"))
	}

	var b strings.Builder
	b.WriteString("You are an expert research analyst. Create a professional, well-structured research report in Markdown format.\n\n")
	fmt.Fprintf(&b, "**Research Topic**: %s\n", topic)
	fmt.Fprintf(&b, "**Depth Level**: %s - %s\n\n", word, reportInstructions[word])
	fmt.Fprintf(&b, "**Source Material**:\n%s\n\n", strings.Join(blocks, "\n\n"))
	b.WriteString("**Report Requirements**:\n" +
		"- Use proper Markdown formatting with clear headers (# ## ###)\n" +
		"- Create tables for comparative data or statistics when appropriate\n" +
		"- Include bullet points for key findings and recommendations\n" +
		"- Write objectively and cite sources with [text](URL) links\n" +
		"- Organize logically: Introduction → Main Sections → Key Findings → Conclusion\n" +
		"- End with a '## Sources' section listing all referenced materials\n" +
		"- Use **bold** for emphasis and `code formatting` for technical terms\n" +
		"- Include relevant quotes from sources when they add value\n\n" +
		"Focus on accuracy, clarity, and actionable insights. Synthesize information rather than just summarizing each source.")
	return b.String()
}
