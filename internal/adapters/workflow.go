package adapters

import (
	"fmt"
	"strings"

	"github.com/kirillm/action-guard/internal/domain"
)

// Step one step of a multi-engine workflow.
type Step struct {
	WorkflowID  string
	Name        string
	Category    domain.Category
	Description string
	Value       float64
	Reversible  bool
	Urgency     domain.Urgency
	Params      map[string]interface{}
}

// WorkflowAdapter turns workflow steps into Actions. The host constructs
// one instance at startup and passes it to whoever runs workflows.
type WorkflowAdapter struct {
	base
	prefix string
}

// NewWorkflowAdapter creates the adapter. prefix is prepended to step
// names to form the action type; empty means no prefix.
func NewWorkflowAdapter(factory *domain.ActionFactory, prefix string) *WorkflowAdapter {
	return &WorkflowAdapter{base: newBase(factory), prefix: prefix}
}

func (a *WorkflowAdapter) Engine() domain.Engine { return domain.EngineWorkflow }

// Step builds the Action for s.
func (a *WorkflowAdapter) Step(s Step) (domain.Action, error) {
	name := strings.ToLower(strings.TrimSpace(s.Name))
	if name == "" {
		return domain.Action{}, fmt.Errorf("%w: workflow step has no name", domain.ErrInvalidAction)
	}
	category := s.Category
	if category == "" {
		category = domain.CategoryOther
	}
	desc := s.Description
	if desc == "" {
		desc = fmt.Sprintf("Workflow %s step %s", s.WorkflowID, name)
	}

	b := a.factory.New(domain.EngineWorkflow, category, a.prefix+name).
		Description(desc).
		Params(s.Params).
		Value(s.Value).
		Reversible(s.Reversible)
	if s.WorkflowID != "" {
		b.Param("workflow_id", s.WorkflowID)
	}
	if s.Urgency != "" {
		b.Urgency(s.Urgency)
	}
	return b.Build()
}

// Steps builds every step, stopping at the first invalid one.
func (a *WorkflowAdapter) Steps(steps []Step) ([]domain.Action, error) {
	out := make([]domain.Action, 0, len(steps))
	for i, s := range steps {
		action, err := a.Step(s)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, action)
	}
	return out, nil
}
