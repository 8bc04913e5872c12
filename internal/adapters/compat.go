package adapters

import "sync"

var (
	defaultWorkflowMu sync.Mutex
	defaultWorkflow   *WorkflowAdapter
)

// DefaultWorkflow returns a process-wide adapter for callers that cannot
// receive one by injection. New code should take a *WorkflowAdapter.
func DefaultWorkflow() *WorkflowAdapter {
	defaultWorkflowMu.Lock()
	defer defaultWorkflowMu.Unlock()
	if defaultWorkflow == nil {
		defaultWorkflow = NewWorkflowAdapter(nil, "")
	}
	return defaultWorkflow
}

// SetDefaultWorkflow installs the host's adapter as the shim's instance.
// nil resets it.
func SetDefaultWorkflow(a *WorkflowAdapter) {
	defaultWorkflowMu.Lock()
	defaultWorkflow = a
	defaultWorkflowMu.Unlock()
}
