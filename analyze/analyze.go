// Package analyze derives a character descriptor from transcript text using
// deterministic keyword heuristics. This is best-effort enrichment: analysis
// never fails the pipeline, and internal faults collapse into a sentinel result.
package analyze

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// CharacterAnalysis is the structured persona descriptor handed to the caller.
// Background, CommunicationStyle and Examples are reserved for future
// extraction and are always empty; callers must not read them as signals.
type CharacterAnalysis struct {
	YouAreA            string   `json:"youAreA"`
	Personality        string   `json:"personality"`
	Background         string   `json:"background"`
	CommunicationStyle string   `json:"communicationStyle"`
	Motivations        string   `json:"motivations"`
	Examples           []string `json:"examples"`
}

var (
	agePattern        = regexp.MustCompile(`(?i)(\d+)\s*(years\s*old|year\s*old|yo)`)
	professionPattern = regexp.MustCompile(`(?i)(software\s*engineer|doctor|teacher|entrepreneur)`)
)

// keywordCategory evaluation order matters: the first category with any
// keyword present in the transcript wins the tie.
type keywordCategory struct {
	name     string
	keywords []string
}

var personalityCategories = []keywordCategory{
	{"outgoing", []string{"energetic", "enthusiastic", "social", "talkative", "extroverted"}},
	{"introverted", []string{"reserved", "shy", "quiet", "thoughtful", "reflective"}},
	{"creative", []string{"artistic", "imaginative", "innovative", "original", "inventive"}},
}

var motivationCategories = []keywordCategory{
	{"learning", []string{"learn", "study", "understand", "knowledge"}},
	{"helping", []string{"help", "support", "assist", "care"}},
	{"creating", []string{"build", "design", "create", "invent"}},
}

// Transcript extracts a CharacterAnalysis from raw transcript text.
// Pure and deterministic: the same text always yields an identical result.
func Transcript(text string) (out CharacterAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcript analysis fault", slog.Any("panic", r))
			out = CharacterAnalysis{YouAreA: "Error analyzing transcript", Examples: []string{}}
		}
	}()

	age := 0
	if m := agePattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			age = n
		}
	}

	profession := professionPattern.FindString(text)

	var b strings.Builder
	b.WriteString("You are a ")
	if age > 0 {
		fmt.Fprintf(&b, "%d year old ", age)
	}
	if profession != "" {
		b.WriteString(profession)
		b.WriteString(" ")
	}
	b.WriteString("who...")

	return CharacterAnalysis{
		YouAreA:     b.String(),
		Personality: matchCategory(text, personalityCategories),
		Motivations: matchCategory(text, motivationCategories),
		Examples:    []string{},
	}
}

// matchCategory returns the name of the first category with any keyword
// appearing as a literal substring of the text, or "" when none match.
func matchCategory(text string, categories []keywordCategory) string {
	for _, cat := range categories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				return cat.name
			}
		}
	}
	return ""
}
