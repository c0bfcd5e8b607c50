package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentlite/core"
)

// Member is one delegation target of a Manager.
type Member struct {
	Agent core.Agent
	// Description overrides Agent.Description in the team listing.
	Description string
}

// Roster is the ordered set of agents a Manager may delegate to. It refers
// to agents without owning them; the same agent may sit on several rosters.
type Roster struct {
	mu      sync.RWMutex
	members map[string]Member
	order   []string
}

// NewRoster creates a roster holding agents in the given order.
func NewRoster(agents ...core.Agent) (*Roster, error) {
	r := &Roster{members: make(map[string]Member, len(agents))}
	for _, a := range agents {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends a using its own description.
func (r *Roster) Add(a core.Agent) error {
	return r.AddWithDescription(a, "")
}

// AddWithDescription appends a and describes it to the manager with desc.
func (r *Roster) AddWithDescription(a core.Agent, desc string) error {
	if a == nil {
		return fmt.Errorf("roster: agent must not be nil")
	}
	name := a.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members == nil {
		r.members = map[string]Member{}
	}
	if _, ok := r.members[name]; ok {
		return fmt.Errorf("roster: agent %q is already a member", name)
	}
	if desc == "" {
		desc = a.Description()
	}

	r.members[name] = Member{Agent: a, Description: desc}
	r.order = append(r.order, name)

	return nil
}

// Lookup returns the member called name or *core.UnknownAgentError.
func (r *Roster) Lookup(name string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.members[name]; ok {
		return m, nil
	}

	available := make([]string, len(r.order))
	copy(available, r.order)

	return Member{}, &core.UnknownAgentError{Name: name, Available: available}
}

// Names returns the member names in insertion order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of members.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe renders the team listing shown to the manager, one member per line.
func (r *Roster) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.members[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
