package breakpoint

import "sync"

// manualScheduler holds callbacks until Fire is called.
type manualScheduler struct {
	mu   sync.Mutex
	jobs []*manualJob
}

type manualJob struct {
	fn        func()
	cancelled bool
}

func (m *manualScheduler) Schedule(fn func()) func() {
	j := &manualJob{fn: fn}
	m.mu.Lock()
	m.jobs = append(m.jobs, j)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		j.cancelled = true
		m.mu.Unlock()
	}
}

// Live returns the number of scheduled, uncancelled callbacks.
func (m *manualScheduler) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if !j.cancelled {
			n++
		}
	}
	return n
}

// Fire runs every live callback and returns how many ran.
func (m *manualScheduler) Fire() int {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = nil
	live := make([]func(), 0, len(jobs))
	for _, j := range jobs {
		if !j.cancelled {
			live = append(live, j.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range live {
		fn()
	}
	return len(live)
}

// recorder collects handler invocations.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) handle(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
