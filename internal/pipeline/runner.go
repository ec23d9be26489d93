package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"bacopilot/internal/app"
	"bacopilot/internal/documents"
	"bacopilot/internal/logging"
	"bacopilot/internal/metrics"
)

var ErrInvalidRequest = errors.New("invalid step request")

const (
	EventStepStart     = "step_start"
	EventDocStart      = "doc_start"
	EventDocCompleted  = "doc_completed"
	EventDocFailed     = "doc_failed"
	EventStepFinished  = "step_finished"
	EventStepCancelled = "step_cancelled"
)

// Event is one progress message of a step run.
type Event struct {
	Type      string `json:"type"`
	Step      string `json:"step"`
	Index     *int   `json:"index,omitempty"`
	DocType   string `json:"doc_type,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Completed *int   `json:"completed,omitempty"`
	Failed    *int   `json:"failed,omitempty"`
}

// Generator produces and stores one document.
type Generator interface {
	Generate(ctx context.Context, userID uint, input app.GenerateInput) (*app.DocumentResult, error)
}

type StepRequest struct {
	ProjectID   uint
	UserID      uint
	Step        documents.Step
	ProjectName string
	Description string
	Documents   []string
}

type Runner struct {
	gen         Generator
	maxParallel int
}

func NewRunner(gen Generator, maxParallel int) *Runner {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Runner{gen: gen, maxParallel: maxParallel}
}

// Validate checks that every requested document belongs to the step and
// returns the list without duplicates.
func (r *Runner) Validate(req StepRequest) ([]string, error) {
	if !documents.IsPipelineStep(req.Step) {
		return nil, fmt.Errorf("%w: %q is not a pipeline step", ErrInvalidRequest, req.Step)
	}
	if strings.TrimSpace(req.Description) == "" && strings.TrimSpace(req.ProjectName) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("%w: no documents requested", ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(req.Documents))
	docs := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		kind, ok := documents.Lookup(d)
		if !ok || kind.Step != req.Step {
			return nil, fmt.Errorf("%w: %q is not a %s document", ErrInvalidRequest, d, req.Step)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		docs = append(docs, d)
	}
	return docs, nil
}

// RunStep generates the requested documents of a step and reports progress
// to n. Documents run concurrently in dependency waves; a document whose
// required inputs are produced in the same step waits for them. A failed
// document does not stop the others. Canceling ctx stops the run after the
// documents in flight return, and the run ends with step_cancelled.
func (r *Runner) RunStep(ctx context.Context, req StepRequest, n Notifier) error {
	docs, err := r.Validate(req)
	if err != nil {
		return err
	}

	step := string(req.Step)
	logger := logging.FromContext(ctx).With("project_id", req.ProjectID, "user_id", req.UserID, "step", step)
	index := make(map[string]int, len(docs))
	for i, d := range docs {
		index[d] = i
	}

	n.Notify(Event{Type: EventStepStart, Step: step})
	logger.Info("step started", "documents", docs)

	var (
		mu        sync.Mutex
		completed int
		failed    int
	)
	description := describe(req)
	for _, wave := range documents.Waves(docs) {
		if ctx.Err() != nil {
			break
		}

		var g errgroup.Group
		g.SetLimit(r.maxParallel)
		for _, docType := range wave {
			idx := index[docType]
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				n.Notify(Event{Type: EventDocStart, Step: step, Index: &idx, DocType: docType})

				res, err := r.gen.Generate(ctx, req.UserID, app.GenerateInput{
					ProjectID:   req.ProjectID,
					DocType:     docType,
					Description: description,
				})
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Warn("document failed", "doc_type", docType, "error", err)
					mu.Lock()
					failed++
					mu.Unlock()
					n.Notify(Event{Type: EventDocFailed, Step: step, Index: &idx, DocType: docType, Error: err.Error()})
					return nil
				}

				mu.Lock()
				completed++
				mu.Unlock()
				n.Notify(Event{Type: EventDocCompleted, Step: step, Index: &idx, DocType: docType, Data: res})
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		metrics.StepRuns.WithLabelValues(step, "cancelled").Inc()
		n.Notify(Event{Type: EventStepCancelled, Step: step, Completed: &completed, Failed: &failed})
		logger.Info("step cancelled", "completed", completed)
		return err
	}

	status := "finished"
	if failed > 0 {
		status = "partial"
	}
	metrics.StepRuns.WithLabelValues(step, status).Inc()
	n.Notify(Event{Type: EventStepFinished, Step: step, Completed: &completed, Failed: &failed})
	logger.Info("step finished", "completed", completed, "failed", failed)
	return nil
}

func describe(req StepRequest) string {
	name := strings.TrimSpace(req.ProjectName)
	desc := strings.TrimSpace(req.Description)
	switch {
	case name == "":
		return desc
	case desc == "":
		return "Project: " + name
	default:
		return "Project: " + name + "\n\n" + desc
	}
}

// Conversation is a two way channel with a client that answers prompts.
type Conversation interface {
	Send(v any) error
	Receive(ctx context.Context) (string, error)
}

type OneClickRequest struct {
	ProjectID   uint
	UserID      uint
	Description string
}

const defaultOneClickDescription = "Auto generate description"

// OneClickStep keys one-click runs in the Registry.
const OneClickStep documents.Step = "one-click"

// oneClickSteps is the fixed sequence run by RunOneClick.
var oneClickSteps = []struct {
	name  string
	input app.GenerateInput
}{
	{name: "srs", input: app.GenerateInput{DocType: "srs"}},
	{name: "wireframe", input: app.GenerateInput{
		DocType: "wireframe",
		Title:   "Auto Wireframe",
		Options: map[string]string{"device_type": "mobile"},
	}},
	{name: "diagram", input: app.GenerateInput{DocType: "usecase-diagram", Title: "Auto Diagram"}},
}

// RunOneClick generates an SRS, a wireframe and a use case diagram in turn,
// asking the client to confirm before each next step. Any answer but "yes"
// stops the sequence.
func (r *Runner) RunOneClick(ctx context.Context, req OneClickRequest, conv Conversation) error {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultOneClickDescription
	}
	logger := logging.FromContext(ctx).With("project_id", req.ProjectID, "user_id", req.UserID)

	for _, s := range oneClickSteps {
		input := s.input
		input.ProjectID = req.ProjectID
		input.Description = description

		res, err := r.gen.Generate(ctx, req.UserID, input)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("one click step failed", "step", s.name, "error", err)
			return conv.Send(map[string]any{
				"error":  s.name + " generation failed",
				"detail": err.Error(),
			})
		}

		if err := conv.Send(map[string]any{
			"step":    s.name,
			"status":  "success",
			"message": strings.ToUpper(s.name) + " generated successfully",
			"res":     res,
		}); err != nil {
			return err
		}
		if err := conv.Send(map[string]any{"action": "confirm_continue"}); err != nil {
			return err
		}

		reply, err := conv.Receive(ctx)
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(reply), "yes") {
			logger.Info("one click stopped by user", "after", s.name)
			return conv.Send(map[string]any{"status": "stopped_by_user"})
		}
	}
	return conv.Send(map[string]any{"status": "completed"})
}
