package core

import "fmt"

// Role identifies the kind of entry recorded in an agent's memory.
type Role string

const (
	// RoleModel marks a raw model response.
	RoleModel Role = "model"
	// RoleAction marks an action invocation parsed from a model response.
	RoleAction Role = "action"
	// RoleObservation marks the result (success or failure) fed back to the model.
	RoleObservation Role = "observation"
)

// Turn is one append-only entry of an agent's memory. Turns carry no
// timestamps so that a fixed model script reproduces the same sequence.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelTurn creates a Turn holding a raw model response.
func ModelTurn(content string) Turn { return Turn{Role: RoleModel, Content: content} }

// ActionTurn creates a Turn holding a rendered action invocation.
func ActionTurn(content string) Turn { return Turn{Role: RoleAction, Content: content} }

// ObservationTurn creates a Turn holding an observation text.
func ObservationTurn(content string) Turn { return Turn{Role: RoleObservation, Content: content} }

func (t Turn) String() string { return fmt.Sprintf("%s: %s", t.Role, t.Content) }

// Observation is the outcome of an action or delegation as seen by the
// reasoning loop. Failures are data: Err holds one of the taxonomy errors and
// the loop feeds Text back to the model.
type Observation struct {
	Action string
	Output string
	Err    error
}

// Failed reports whether the observation describes a failure.
func (o Observation) Failed() bool { return o.Err != nil }

// Text renders the observation as fed back into the model context.
func (o Observation) Text() string {
	if o.Err != nil {
		return fmt.Sprintf("Error [%s]: %v", ErrorKind(o.Err), o.Err)
	}
	return o.Output
}

// ErrorObservation builds a failed observation for action.
func ErrorObservation(action string, err error) Observation {
	return Observation{Action: action, Err: err}
}
