package game

import (
	"fmt"
	"strings"
)

const promptHeader = "✨ Estrella ✨\n"

// CheckpointPrompt builds the narrator prompt for the 10 and 20 draw checkpoints.
func CheckpointPrompt(step int, stats Stats) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	switch step {
	case CheckpointFirst:
		b.WriteString("10-Draw Check-In\n\n")
		b.WriteString("Write TWO short paragraphs reflecting on this 10-draw session so far. ")
		b.WriteString("Keep it direct and emotionally grounded.\n\n")
	default:
		b.WriteString("20-Draw Ratio & Energy Analysis\n\n")
		b.WriteString("Write TWO short paragraphs.\n")
		b.WriteString("Paragraph 1: analyze the vibe ratios and what they imply.\n")
		b.WriteString("Paragraph 2: describe the session's overall energy (high/medium/low) with one suggestion.\n\n")
	}
	writeStats(&b, stats)
	fmt.Fprintf(&b, "\nCheckpoint: %d/%d", step, ClassicDraws)
	return b.String()
}

// FinalPrompt asks for the five-line reading. The force symbol is stripped
// from the question.
func FinalPrompt(stats Stats, question string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(question, ForceZenithSymbol, ""))
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("Final Reading\n\n")
	b.WriteString("Return exactly five lines with these labels:\n")
	b.WriteString("Intention:\nForward action:\nPast reflection:\nEnergy level:\nAspirational message:\n\n")
	writeStats(&b, stats)
	fmt.Fprintf(&b, "\nQuestion: %s", cleaned)
	return b.String()
}

func writeStats(b *strings.Builder, stats Stats) {
	fmt.Fprintf(b, "Vibes: %s\n", stats.vibeLine())
	fmt.Fprintf(b, "Levels: %s\n", stats.levelLine())
	fmt.Fprintf(b, "Zenith count: %d (forced %d)", stats.Zenith, stats.ZenithForced)
}
