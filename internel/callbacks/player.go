package callbacks

import "Aethertone/pkg/async"

// Player plays Track once through a device callback and then outputs
// silence.
type Player struct {
	idx   int
	Track []int32

	done async.Signal[struct{}]
}

func (p *Player) Update(in, out []int32) {
	n := copy(out, p.Track[min(p.idx, len(p.Track)):])
	p.idx += n
	clear(out[n:])
	if n < len(out) {
		p.done.Notify()
	}
}

// Done fires once the whole track has been played.
func (p *Player) Done() <-chan struct{} {
	return p.done.Signal()
}
