// ABOUTME: Interpreter interface for the external intent/dialog collaborator
// ABOUTME: The gateway only passes text in and wraps the result; it owns no dialog state

package intent

import "context"

// Result is the collaborator's answer to a processed command.
// Command is present when the dialog decided a concrete device command
// should run; it stays opaque to the gateway.
type Result struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Command map[string]any `json:"command,omitempty"`
}

// Interpreter turns free-form command text into a structured Result.
// Implementations must not reach back into gateway state; they receive
// only the text passed to them.
type Interpreter interface {
	ProcessText(ctx context.Context, command string) (*Result, error)
}

// Unconfigured is the Interpreter used when no endpoint is set. Every
// command resolves to an error status so clients get a descriptive
// result instead of a dropped frame.
type Unconfigured struct{}

func (Unconfigured) ProcessText(_ context.Context, _ string) (*Result, error) {
	return &Result{
		Status:  "error",
		Message: "No command interpreter configured",
	}, nil
}
