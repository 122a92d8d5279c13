package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"unirag/internal/domain"
	"unirag/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

//go:embed templates/system_prompt.txt
var systemPrompt string

var userPromptTmpl = template.Must(
	template.New("user_prompt.txt").
		Funcs(template.FuncMap{"orNone": orNone}).
		ParseFS(promptTemplates, "templates/user_prompt.txt"),
)

const sectionSeparator = "\n\n"

var _ port.Packer = (*Assembler)(nil)

// Assembler merges retrieved chunks and live documents into one bounded
// prompt body. Budgets are counted in characters (runes).
type Assembler struct {
	offlineShare    float64
	minSectionShare float64
}

// NewAssembler creates an assembler giving offlineShare of the budget to the
// offline section. When both sections have content each keeps at least
// minSectionShare of the budget.
func NewAssembler(offlineShare, minSectionShare float64) *Assembler {
	if offlineShare < 0 || offlineShare > 1 {
		offlineShare = 0.5
	}
	if minSectionShare < 0 || minSectionShare > 0.5 {
		minSectionShare = 0.25
	}
	return &Assembler{offlineShare: offlineShare, minSectionShare: minSectionShare}
}

// Assemble builds both sections and truncates each to its share. Capacity a
// section does not need is handed to the other, so a short offline section
// leaves more room for live text and vice versa.
func (a *Assembler) Assemble(offline []domain.ScoredChunk, live []domain.LiveDocument, budget int) domain.AssembledContext {
	if budget < 0 {
		budget = 0
	}

	offlineText := FormatOffline(offline)
	liveText := FormatLive(live)

	offlineLen := utf8.RuneCountInString(offlineText)
	liveLen := utf8.RuneCountInString(liveText)

	offlineCap, liveCap := a.split(offlineLen, liveLen, budget)

	ctx := domain.AssembledContext{TotalCharBudget: budget}
	ctx.OfflineSection, ctx.OfflineTruncated = truncateRunes(offlineText, offlineCap)
	ctx.LiveSection, ctx.LiveTruncated = truncateRunes(liveText, liveCap)
	return ctx
}

func (a *Assembler) split(offlineLen, liveLen, budget int) (int, int) {
	switch {
	case offlineLen == 0:
		return 0, budget
	case liveLen == 0:
		return budget, 0
	}

	share := a.offlineShare
	if share < a.minSectionShare {
		share = a.minSectionShare
	}
	if share > 1-a.minSectionShare {
		share = 1 - a.minSectionShare
	}

	offlineCap := int(float64(budget) * share)
	liveCap := budget - offlineCap

	if offlineLen < offlineCap {
		liveCap += offlineCap - offlineLen
		offlineCap = offlineLen
	} else if liveLen < liveCap {
		offlineCap += liveCap - liveLen
		liveCap = liveLen
	}
	return offlineCap, liveCap
}

// FormatOffline renders chunks in retrieval order, each prefixed with its
// source and position.
func FormatOffline(chunks []domain.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		text := strings.TrimSpace(sc.Chunk.Text)
		if text == "" {
			continue
		}
		source := sc.Chunk.Source
		if source == "" {
			source = "offline"
		}
		parts = append(parts, fmt.Sprintf("[%s #%d] %s", source, sc.Chunk.Sequence, text))
	}
	return strings.Join(parts, sectionSeparator)
}

// FormatLive joins non-empty live documents with blank lines in fetch order.
func FormatLive(docs []domain.LiveDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if text := strings.TrimSpace(d.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, sectionSeparator)
}

// SystemPrompt returns the built-in assistant instructions.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// RenderUserPrompt formats the question and assembled context for the LLM.
func RenderUserPrompt(query string, ctx domain.AssembledContext) (string, error) {
	var buf bytes.Buffer
	err := userPromptTmpl.Execute(&buf, struct {
		Query   string
		Context domain.AssembledContext
	}{Query: query, Context: ctx})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
