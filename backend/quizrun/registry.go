package quizrun

import "sync"

// Registry keeps live runs in memory, keyed by run id. Runs are transient:
// nothing here survives a restart, only recorded attempts do.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

func NewRegistry() *Registry {
	return &Registry{runs: map[string]*Run{}}
}

func (r *Registry) Put(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
}

func (r *Registry) Get(id string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}
