package services

import (
	"strings"

	"github.com/rationalmind/rationalmind-backend/internal/types"
)

// Model selection is tier-based: paying profiles get the larger-context
// model, everyone else the default. The context window feeds the allocator.
type ModelConfig struct {
	Name          string
	ContextWindow int
}

var (
	ModelPaying = ModelConfig{Name: "o4-mini-2025-04-16", ContextWindow: 100000}
	ModelFree   = ModelConfig{Name: "gpt-4o-mini-2024-07-18", ContextWindow: 64000}
)

const (
	// Per-message framing cost charged on top of content tokens.
	MessageOverheadTokens = 4

	TargetMaxOutputTokensChat = 300
	ProcessingMaxTokens       = 1024
	SafetyBufferTokens        = 250
	RAGContextTokenCeiling    = 800

	RAGSessionsLimit  = 3
	RAGPeopleLimit    = 2
	RAGKnowledgeLimit = 2

	DefaultRationality = 3
)

// Sentinel outputs the enrichment prompts are contracted to return when there
// is nothing actionable. Matched exactly; anything else is real content.
const (
	SentinelInsufficientSummary = "Insufficient data for meaningful summary."
	SentinelNoPatterns          = "No significant patterns identified from this session."
	SentinelNoProfileUpdate     = "No update to dynamic profile warranted based on this session."
	SentinelPatternInconclusive = "Main pattern assessment inconclusive from this session."
)

// DefaultSystemPrompt is used whenever no knowledge entry carries a system
// prompt for the effective rationality level.
const DefaultSystemPrompt = `You are a helpful AI assistant. Your name is Rational Mind. You are designed to help users explore and manage thoughts that lead to overthinking, and promote self-understanding and mental clarity. You should be supportive and act as an "Overthinking Buddy".`

const RAGContextHeader = "ADDITIONAL CONTEXT FROM YOUR HISTORY AND KNOWLEDGE BASE:"

const summaryPrompt = `
Act as the user's private historian. Distil the session into a SHORT narrative (<=120 words) capturing:
1. What the user wrestled with most
2. The moment of highest clarity or realisation for them
3. One unanswered question or lingering tension they still face
Return ONLY the narrative or "Insufficient data..." if warranted.

Conversation:
{chat_history}
`

const patternsPrompt = `
Identify RECURRING cognitive or behavioural patterns displayed by the user in this conversation.
For each pattern provide ONE bullet: "- <Pattern> - evidenced by: "<exact user phrase>"".
Maximum 5 bullets. If no clear pattern, output exactly: "No significant patterns identified from this session."

Conversation:
{chat_history}
`

const dynamicProfilePrompt = `
Role: Senior cognitive-coach. Decide whether to update the USER'S dynamic profile.

Step 1 - Assess Change
Does the new session show a SUBSTANTIAL, enduring change or fresh insight that is NOT already reflected?
Guidelines:
- Self-claims count only if supported by consistent dialogue.
- Small mood swings are not substantial.
- Resolving a long-standing core pattern IS substantial.

Step 2 - Respond
If NO -> Output EXACTLY: "No update to dynamic profile warranted based on this session."
If YES -> Output the FULL updated dynamic profile (<=200 words), integrating new insight while keeping previous accurate elements.

Context
EXISTING Dynamic Profile:
{existing_dynamic_profile}

EXISTING Main Pattern:
{existing_main_pattern}

NEW Session Summary:
{new_session_summary}

NEW Session Patterns:
{new_session_patterns}

Updated Dynamic Profile:
`

const mainPatternPrompt = `
Task: Determine the USER'S single most dominant cognitive pattern *after* this session.

Procedure
1. Compare CURRENT dynamic profile + EXISTING main pattern with NEW session data.
2. If the former main pattern is clearly resolved or replaced, state the NEW main pattern.
3. If the former main pattern is reinforced, restate or refine it.
4. If evidence is weak or conflicting, output: "Main pattern assessment inconclusive from this session."

Return ONLY the pattern text or the inconclusive statement.

CURRENT Dynamic Profile:
{current_dynamic_profile}

EXISTING Main Pattern:
{existing_main_pattern}

NEW Session Summary:
{new_session_summary}

NEW Session Patterns:
{new_session_patterns}

Main Pattern:
`

const peopleExtractionPrompt = `
You are a data extraction bot. List EVERY distinct person explicitly NAMED in the conversation.

Output requirements - read carefully:
- Respond with ONLY a valid JSON array (no markdown, no prose, no code fences).
- Each element: {"name":"<full name as written>", "description":"<one concise, neutral sentence of their role/relationship as stated>"}
- If zero valid people, output: []

Conversation:
{chat_history}
`

// fillPrompt substitutes {key} placeholders in a prompt template.
func fillPrompt(template string, variables map[string]string) string {
	out := template
	for key, value := range variables {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return strings.TrimSpace(out)
}

func SelectModel(tier string) ModelConfig {
	if tier == types.TierPaying {
		return ModelPaying
	}
	return ModelFree
}
