package services

import (
	"fmt"
	"os"
	"strings"

	"alfredoptarigan/readysetrole/internal/models"
)

const BotName = "ReadySetRole"

const fallbackSystemPrompt = "<Role>ReadySetRole, resume & cover letter tailoring bot.</Role>\n" +
	"<Goal>Deliver ATS-safe tailored resume+letter from Master Resume + JD, with Pre-Score, Packs, Post-Score, Evidence Map.</Goal>\n" +
	"<Rules>Be truthful, ATS-safe; never fabricate; show numbered options; return all outputs together.</Rules>"

const scoresJSONShape = `{"overall": <0-100>, "subscores": {"<name>": <0-100>}, "missing_keywords": ["..."], "explanation": "..."}`

type PromptBuilder struct {
	systemPrompt string
	source       string
	loaded       bool
}

// NewPromptBuilder reads the system instruction from path. A missing or empty
// file falls back to a compact built-in prompt.
func NewPromptBuilder(path string) *PromptBuilder {
	pb := &PromptBuilder{systemPrompt: fallbackSystemPrompt, source: path}

	data, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(data)) != "" {
		pb.systemPrompt = string(data)
		pb.loaded = true
	}

	return pb
}

func (pb *PromptBuilder) SystemInstruction() string {
	return pb.systemPrompt
}

func (pb *PromptBuilder) Info() models.PromptInfoResponse {
	return models.PromptInfoResponse{
		Source: pb.source,
		Chars:  len([]rune(pb.systemPrompt)),
		Loaded: pb.loaded,
	}
}

// Greeting is the first assistant message of every session.
func (pb *PromptBuilder) Greeting() string {
	return fmt.Sprintf("Hi! I'm **%s**.\n\n", BotName) +
		"Upload/paste your **Master Resume** once (I'll remember it), and paste the **Job Description (JD)**. " +
		"Send **Tailor Now** to get Pre-Score → Packs → tailored resume + cover letter + evidence."
}

// BuildTailorPrompt creates the scaffold sent with a new JD
func (pb *PromptBuilder) BuildTailorPrompt(resumeText, jobDescription string) string {
	return fmt.Sprintf(`FOLLOW READYSETROLE FLOW STRICTLY.
Inputs:
<<MASTER_RESUME_TEXT>>
%s
<<JOB_DESCRIPTION>>
%s
If a Master Resume file is present, read it for evidence too.

Tasks:
1) QuickScore → Pre-Score (overall + sub-scores + top missing keywords + ≤60-word explanation).
2) SuggestPacks → grouped keyword Packs with predicted Δ; show numbered options.
3) If no user selection yet, propose 0 = Apply All (safe).
4) ApplySuggestions + FitToLength → ATS-safe resume (1 page default) + GenerateCoverLetter (~200 words).
5) Return Post-Score + Evidence Map + ATS Preview + Change Log + Metric Badges + Confidence Receipt.
6) Offer BoostScore (optional, 2–3 taps).
Rules: never fabricate; use only resume + JD; unproven → Exposure/Learning; minimal numbered UI.

End the reply with one fenced json block:
{"scores": %s, "packs": [{"id": 1, "name": "...", "keywords": ["..."], "delta": <points>}]}`,
		resumeText, jobDescription, scoresJSONShape)
}

// BuildTurnContext creates the hidden context sent before every chat reply.
// A recognised selection is spelled out so the model does not have to guess.
func (pb *PromptBuilder) BuildTurnContext(resumeText, jobDescription string, selection []int, packs []models.Pack) string {
	var b strings.Builder

	b.WriteString("Context (do not echo):\n")
	fmt.Fprintf(&b, "- Master Resume text length: %d\n", len([]rune(resumeText)))
	fmt.Fprintf(&b, "- JD length: %d\n", len([]rune(jobDescription)))
	b.WriteString("If user reply is numeric like '1,3' or '0', treat as Pack selections. ")
	b.WriteString("Apply suggestions → return Post-Score + tailored resume + cover letter + evidence. ")
	b.WriteString("Never fabricate; keep ATS-safe; minimal numbered UI.")

	if len(selection) > 0 {
		b.WriteString("\n- Selected packs: ")
		b.WriteString(describeSelection(selection, packs))
		fmt.Fprintf(&b, "\nEnd the reply with one fenced json block: {\"post_scores\": %s}", scoresJSONShape)
	}

	return b.String()
}

func describeSelection(selection []int, packs []models.Pack) string {
	if IsApplyAll(selection) {
		return "0 (Apply All)"
	}

	names := make(map[int]string, len(packs))
	for _, p := range packs {
		names[p.ID] = p.Name
	}

	parts := make([]string, 0, len(selection))
	for _, n := range selection {
		if name, ok := names[n]; ok && name != "" {
			parts = append(parts, fmt.Sprintf("%d (%s)", n, name))
		} else {
			parts = append(parts, fmt.Sprintf("%d", n))
		}
	}
	return strings.Join(parts, ", ")
}

const errorPrefix = "❌ Error from Gemini:"

// FormatError renders a failed model call the way the transcript shows it.
func FormatError(err error) string {
	return fmt.Sprintf("%s %v", errorPrefix, err)
}
