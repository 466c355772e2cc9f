package transport

import (
	"sync"

	"github.com/iudanet/mathroom/pkg/api"
)

type received struct {
	env  api.Envelope
	from string
}

// recorder Handler, запоминающий все события.
type recorder struct {
	messages []received
	up       []string
	down     []string
	statuses []Status
	mu       sync.Mutex
}

func (r *recorder) HandleMessage(from string, env api.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, received{from: from, env: env})
}

func (r *recorder) HandlePeerUp(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.up = append(r.up, peer)
}

func (r *recorder) HandlePeerDown(peer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = append(r.down, peer)
}

func (r *recorder) HandleStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) Messages() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.messages...)
}

func (r *recorder) Up() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.up...)
}

func (r *recorder) Down() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.down...)
}

func (r *recorder) LastStatus() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return Status{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}
