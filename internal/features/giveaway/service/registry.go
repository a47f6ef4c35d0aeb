package service

import "sync"

// Registry maps channel logins to their running orchestrators.
type Registry struct {
	mu      sync.RWMutex
	byLogin map[string]*Orchestrator
}

func NewRegistry() *Registry {
	return &Registry{byLogin: make(map[string]*Orchestrator)}
}

func (r *Registry) Add(login string, o *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLogin[login] = o
}

func (r *Registry) Get(login string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byLogin[login]
	return o, ok
}
