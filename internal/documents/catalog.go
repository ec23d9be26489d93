// Package documents holds the static catalog of document kinds the AI services
// can generate, their dependency graph and the renderers that turn AI answers
// into stored Markdown.
package documents

import (
	"fmt"
	"strings"
)

type Step string

const (
	StepPlanning  Step = "planning"
	StepAnalysis  Step = "analysis"
	StepDesign    Step = "design"
	StepSRS       Step = "srs"
	StepWireframe Step = "wireframe"
	StepDiagram   Step = "diagram"
)

// PromptInput is what a caller supplies when asking for a document.
type PromptInput struct {
	Title       string
	Description string
	Options     map[string]string
}

type Kind struct {
	Type   string
	Step   Step
	Folder string
	// Gated kinds refuse to generate until their required dependencies
	// exist in the project. Only planning and analysis documents are gated.
	Gated bool

	render func(response any) Rendered
	prompt func(in PromptInput) string
}

func (k Kind) Render(response any) Rendered {
	if k.render == nil {
		return renderPlain(response)
	}
	return k.render(response)
}

func (k Kind) Prompt(in PromptInput) string {
	if k.prompt == nil {
		return in.Description
	}
	return k.prompt(in)
}

var catalog = buildCatalog()

var stepOrder = map[Step][]string{
	StepPlanning: {
		"stakeholder-register",
		"high-level-requirements",
		"requirements-management-plan",
		"business-case",
		"scope-statement",
		"product-roadmap",
	},
	StepAnalysis: {
		"feasibility-study",
		"cost-benefit-analysis",
		"risk-register",
		"compliance",
	},
	StepDesign: {
		"hld-arch",
		"hld-cloud",
		"hld-tech",
		"lld-arch",
		"lld-db",
		"lld-api",
		"lld-pseudo",
		"uiux-wireframe",
		"uiux-mockup",
		"uiux-prototype",
		"rtm",
	},
	StepSRS:       {"srs"},
	StepWireframe: {"wireframe"},
	StepDiagram:   {"usecase-diagram", "class-diagram", "activity-diagram"},
}

func buildCatalog() map[string]Kind {
	kinds := make(map[string]Kind)
	for step, types := range stepOrder {
		for _, t := range types {
			kinds[t] = Kind{
				Type:   t,
				Step:   step,
				Folder: t,
				Gated:  step == StepPlanning || step == StepAnalysis,
			}
		}
	}

	srs := kinds["srs"]
	srs.render = renderSRS
	kinds["srs"] = srs

	wf := kinds["wireframe"]
	wf.render = renderWireframe
	wf.prompt = wireframePrompt
	kinds["wireframe"] = wf

	for _, t := range stepOrder[StepDiagram] {
		d := kinds[t]
		d.render = renderDiagram
		d.prompt = diagramPrompt(strings.TrimSuffix(t, "-diagram"))
		kinds[t] = d
	}
	return kinds
}

// Lookup returns the kind registered for a document type tag.
func Lookup(docType string) (Kind, bool) {
	k, ok := catalog[docType]
	return k, ok
}

// TypesForStep returns the document types of a step in catalog order.
func TypesForStep(step Step) []string {
	types := stepOrder[step]
	out := make([]string, len(types))
	copy(out, types)
	return out
}

func ParseStep(s string) (Step, bool) {
	step := Step(strings.ToLower(strings.TrimSpace(s)))
	_, ok := stepOrder[step]
	return step, ok
}

// IsPipelineStep reports whether the step can be run over the step WebSocket.
func IsPipelineStep(step Step) bool {
	return step == StepPlanning || step == StepAnalysis || step == StepDesign
}

// DiagramType maps the short diagram names accepted by the API (usecase,
// class, activity) to their document type tag.
func DiagramType(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasSuffix(name, "-diagram") {
		name += "-diagram"
	}
	k, ok := catalog[name]
	if !ok || k.Step != StepDiagram {
		return "", false
	}
	return name, true
}

func wireframePrompt(in PromptInput) string {
	device := in.Options["device_type"]
	if device == "" {
		device = "desktop"
	}
	return fmt.Sprintf(`
Project Description:
This project involves creating a wireframe for a %s device.
The wireframe is named "%s".

Key Requirements:
- General Description: %s
`, device, in.Title, in.Description)
}

func diagramPrompt(diagram string) func(PromptInput) string {
	return func(in PromptInput) string {
		return fmt.Sprintf(`
Project Description:
This project involves creating a %s diagram.

Key Requirements:
- General Description: %s
`, diagram, in.Description)
	}
}
