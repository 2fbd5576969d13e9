// internal/lobby/registry.go
package lobby

import "github.com/google/uuid"

// Registry holds the live lobbies. It is owned by the engine and only touched from
// the event loop, so it carries no lock.
type Registry struct {
	lobbies map[uuid.UUID]*Lobby
	// order keeps listings stable in creation order.
	order []uuid.UUID
}

// NewRegistry initializes an empty registry.
func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[uuid.UUID]*Lobby)}
}

// Create adds a fresh idle lobby with no members.
func (r *Registry) Create(name string) *Lobby {
	l := newLobby(name)
	r.lobbies[l.ID] = l
	r.order = append(r.order, l.ID)
	return l
}

// Get returns the lobby or nil.
func (r *Registry) Get(id uuid.UUID) *Lobby {
	return r.lobbies[id]
}

// Delete removes the lobby and marks it destroyed so pending continuations become no-ops.
func (r *Registry) Delete(id uuid.UUID) {
	l, ok := r.lobbies[id]
	if !ok {
		return
	}
	l.destroyed = true
	delete(r.lobbies, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len is the number of live lobbies.
func (r *Registry) Len() int {
	return len(r.lobbies)
}

// Summary is the public listing entry for a lobby.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	HostName    string    `json:"host_name"`
	State       State     `json:"state"`
}

// List summarizes every live lobby in creation order.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		l := r.lobbies[id]
		s := Summary{ID: l.ID, Name: l.Name, MemberCount: len(l.Members), State: l.State}
		if l.RoomHost != nil {
			s.HostName = l.RoomHost.Name
		}
		out = append(out, s)
	}
	return out
}

