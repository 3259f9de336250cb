package kiosk

import (
	"strings"
	"time"
)

// NoDataSentinel replaces the context block when retrieval returns nothing,
// so the model can tell "no grounding available" apart from an empty
// answer.
const NoDataSentinel = "NO_DATA_FOUND"

// Apology is the canned response surfaced on the text path when a turn
// fails or the knowledge base has no answer.
const Apology = "I'm sorry, I don't have that information in my current records."

// DefaultPersona identifies the assistant in the grounded prompt.
const DefaultPersona = "You are Bearnard, the AI Concierge of iACADEMY (The Nexus), located at the Ground Floor - Lobby."

const (
	// shortTokenBudget caps ordinary answers; spoken replies should stay
	// under a couple of sentences.
	shortTokenBudget = 256

	// listTokenBudget applies when the question asks for a list, which
	// would otherwise be cut off mid-enumeration.
	listTokenBudget = 1024
)

// TokenBudget returns the completion token cap for a user query.
func TokenBudget(query string) int {
	if strings.Contains(strings.ToLower(query), "list") {
		return listTokenBudget
	}
	return shortTokenBudget
}

// BuildPrompt assembles the grounded prompt: persona, current time,
// answering instructions, the retrieved context (or NoDataSentinel), and
// the user's question. The context block is the model's only source of
// truth; off-topic questions are declined and answers are phrased for
// speech.
func BuildPrompt(persona string, now time.Time, query string, docs []string) string {
	context := NoDataSentinel
	if len(docs) > 0 {
		context = strings.Join(docs, "\n---\n")
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\nCurrent Time: ")
	b.WriteString(now.Format("Monday, 3:04 PM"))
	b.WriteString("\n\n### INSTRUCTIONS:\n")
	b.WriteString("1. SOURCE OF TRUTH: Answer using ONLY the information in the [CONTEXT] block below.\n")
	b.WriteString("2. UNKNOWN INFO: If the [CONTEXT] contains \"" + NoDataSentinel + "\" or does not contain the answer, say exactly: \"" + Apology + "\"\n")
	b.WriteString("3. OFF-TOPIC: If the user asks about math, coding, or general world trivia unrelated to the venue, politely decline.\n")
	b.WriteString("4. VOICE OPTIMIZATION: You are speaking to the user.\n")
	b.WriteString("   - Keep answers short, under 2 sentences if possible.\n")
	b.WriteString("   - Do NOT use lists, bullet points, or markdown formatting.\n")
	b.WriteString("   - If listing items, separate them with commas for natural speech.\n")
	b.WriteString("\nSPECIAL RULES:\n")
	b.WriteString("- If asked about the NEAREST location, answer relative to your own location.\n")
	b.WriteString("- If asked for actions (greet, say hello), respond with a short greeting only.\n")
	b.WriteString("- If asked for the time, respond with the current time only.\n")
	b.WriteString("\n### [CONTEXT]\n")
	b.WriteString(context)
	b.WriteString("\n\n### [USER QUESTION]\n")
	b.WriteString(query)
	b.WriteString("\n\n### [ANSWER]\n")
	return b.String()
}
