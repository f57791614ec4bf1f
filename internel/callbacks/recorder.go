package callbacks

import "sync"

// Recorder appends everything a device captures.
type Recorder struct {
	mu    sync.Mutex
	track []int32
}

func (r *Recorder) Update(in, out []int32) {
	r.mu.Lock()
	r.track = append(r.track, in...)
	r.mu.Unlock()
}

// Track returns a copy of the recording so far.
func (r *Recorder) Track() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.track...)
}
