package planning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/sorceryai/conjure/internal/events"
)

// StageResult is one completed pipeline stage. DiagramPath is set only
// for stages whose output carries a mermaid diagram.
type StageResult struct {
	Name        string
	Content     string
	PDFPath     string
	DiagramPath string
}

// Result is a completed planning run.
type Result struct {
	Query         string
	ProjectFolder string
	Stages        []StageResult
}

// Pipeline runs the planning stages in order, saving each result as a
// PDF. A failed stage stops the run; later stages never see partial
// input.
type Pipeline struct {
	llm     CompletionClient
	store   *DocumentStore
	dataDir string
	bus     *events.Bus
	log     zerolog.Logger

	now func() time.Time
}

// NewPipeline creates a planning pipeline. The bus is optional.
func NewPipeline(llm CompletionClient, store *DocumentStore, dataDir string, bus *events.Bus, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		llm:     llm,
		store:   store,
		dataDir: dataDir,
		bus:     bus,
		log:     log.With().Str("component", "planning").Logger(),
		now:     time.Now,
	}
}

// Run executes the full pipeline for one project idea.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("project idea is empty")
	}

	result := &Result{
		Query:         query,
		ProjectFolder: projectFolderName(query, p.now()),
	}

	p.log.Info().
		Str("folder", result.ProjectFolder).
		Msg("Starting planning run")

	// Stage 1: similar projects from past runs
	similar, err := p.similarProjects(ctx, query)
	if err != nil {
		return nil, p.fail("similar_projects", err)
	}
	if err := p.finishStage(result, "01_similar_projects", similar); err != nil {
		return nil, err
	}

	// Stage 2: project design brief
	brief, err := p.llm.Complete(ctx, briefPrompt(query))
	if err != nil {
		return nil, p.fail("project_brief", err)
	}
	if err := p.finishStage(result, "02_project_brief", brief); err != nil {
		return nil, err
	}

	// Index the brief so later runs can retrieve it as a similar project.
	if p.store != nil {
		if _, err := p.store.Add(ctx, brief); err != nil {
			p.log.Warn().Err(err).Msg("Failed to index project brief")
		}
	}

	// Stage 3: architecture flowchart
	flowchart, err := p.llm.Complete(ctx, flowchartPrompt(brief))
	if err != nil {
		return nil, p.fail("flowchart", err)
	}
	if err := p.finishStage(result, "03_flowchart", flowchart); err != nil {
		return nil, err
	}

	// Stage 4: persona, scenario, interview questions
	research, err := p.llm.Complete(ctx, researchPrompt(brief))
	if err != nil {
		return nil, p.fail("research", err)
	}
	if err := p.finishStage(result, "04_research", research); err != nil {
		return nil, err
	}

	// Stage 5: user journey map
	journey, err := p.llm.Complete(ctx, journeyPrompt(brief))
	if err != nil {
		return nil, p.fail("journey", err)
	}
	if err := p.finishStage(result, "05_journey", journey); err != nil {
		return nil, err
	}

	// Stage 6: prototype code
	prototype, err := p.llm.Complete(ctx, prototypePrompt(brief, research, flowchart))
	if err != nil {
		return nil, p.fail("prototype", err)
	}
	if err := p.finishStage(result, "06_prototype", prototype); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("folder", result.ProjectFolder).
		Int("stages", len(result.Stages)).
		Msg("Planning run completed")

	if p.bus != nil {
		p.bus.Emit(events.PlanCompleted, "planning", map[string]interface{}{
			"folder": result.ProjectFolder,
			"stages": len(result.Stages),
		})
	}

	return result, nil
}

// similarProjects searches past ideas; an empty store is not an error.
func (p *Pipeline) similarProjects(ctx context.Context, query string) (string, error) {
	if p.store == nil {
		return "No similar projects found.", nil
	}

	matches, err := p.store.SearchSimilar(ctx, query, 3)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No similar projects found.", nil
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s\n\n", m.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// finishStage saves the stage PDF, records it, and emits progress.
// Stages that produced a mermaid diagram get a .mmd sidecar next to
// the PDF so the chart can be rendered without re-parsing the text.
func (p *Pipeline) finishStage(result *Result, name, content string) error {
	path, err := SavePDF(content, name, result.ProjectFolder, p.dataDir)
	if err != nil {
		return p.fail(name, err)
	}

	stage := StageResult{
		Name:    name,
		Content: content,
		PDFPath: path,
	}

	if code, ok := ExtractMermaid(content); ok {
		diagramPath := filepath.Join(filepath.Dir(path), name+".mmd")
		if err := os.WriteFile(diagramPath, []byte(code+"\n"), 0644); err != nil {
			return p.fail(name, err)
		}
		stage.DiagramPath = diagramPath
	}

	result.Stages = append(result.Stages, stage)

	p.log.Info().Str("stage", name).Str("pdf", path).Msg("Stage completed")

	if p.bus != nil {
		p.bus.Emit(events.PlanStageFinished, "planning", map[string]interface{}{
			"stage": name,
			"pdf":   path,
		})
	}

	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.log.Error().Err(err).Str("stage", stage).Msg("Planning stage failed")
	return fmt.Errorf("stage %s failed: %w", stage, err)
}

// projectFolderName builds "<timestamp>-<first_three_words>" from the
// idea, e.g. "20240428_143022-crypto_tracking_dashboard".
func projectFolderName(query string, now time.Time) string {
	words := strings.Fields(query)
	if len(words) > 3 {
		words = words[:3]
	}

	clean := make([]string, 0, len(words))
	for _, word := range words {
		var b strings.Builder
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		clean = append(clean, b.String())
	}

	return now.Format("20060102_150405") + "-" + strings.Join(clean, "_")
}
