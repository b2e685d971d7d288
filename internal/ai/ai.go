// Package ai holds the optional language-model adapters: a text generator
// for work summaries and an embedder for matching text to projects. Neither
// is used by the tracking engine.
package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/sadopc/toki/internal/config"
	"github.com/sadopc/toki/internal/store"
)

var ErrNotConfigured = errors.New("ai provider not configured")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewGenerator picks the generator from configuration. The API key comes
// from the environment variable the config names; a custom base URL (for
// example a local OpenAI-compatible server) may run without one.
func NewGenerator(cfg config.AIConfig) (Generator, error) {
	key := os.Getenv(cfg.OpenAI.APIKeyEnv)
	if key == "" && cfg.OpenAI.BaseURL == "" {
		return nil, fmt.Errorf("%w: set %s", ErrNotConfigured, cfg.OpenAI.APIKeyEnv)
	}
	return NewOpenAI(key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
}

func NewEmbedder(cfg config.AIConfig) (Embedder, error) {
	if cfg.Ollama.URL == "" || cfg.Ollama.Model == "" {
		return nil, ErrNotConfigured
	}
	return NewOllama(cfg.Ollama.URL, cfg.Ollama.Model), nil
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type Match struct {
	Project store.Project
	Score   float32
}

// MatchProjects ranks projects with stored embeddings by similarity to text.
func MatchProjects(ctx context.Context, e Embedder, projects []store.Project, text string) ([]Match, error) {
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	var out []Match
	for _, p := range projects {
		if len(p.Embedding) == 0 {
			continue
		}
		out = append(out, Match{Project: p, Score: Cosine(vec, p.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// ProjectText is the text embedded for a project.
func ProjectText(p store.Project) string {
	parts := []string{p.Name}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if p.Path != "" {
		parts = append(parts, p.Path)
	}
	return strings.Join(parts, "\n")
}

// SummaryPrompt asks for a short markdown summary of one day's activity.
func SummaryPrompt(day string, projects []store.DailySummary, categories []store.CategorySummary, items []store.WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize my work on %s in a few markdown bullet points. Be concise and concrete.\n\n", day)
	b.WriteString("Time by category:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %d min across %d spans\n", c.Category, c.TotalSeconds/60, c.SpanCount)
	}
	if len(projects) > 0 {
		b.WriteString("\nTime by project:\n")
		for _, p := range projects {
			fmt.Fprintf(&b, "- %s: %d min\n", p.ProjectName, p.TotalSeconds/60)
		}
	}
	if len(items) > 0 {
		b.WriteString("\nIssues touched:\n")
		for _, wi := range items {
			line := "- " + wi.ExternalID
			if wi.Title != "" {
				line += ": " + wi.Title
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
