package tunnel

import "sync"

// Tunnel ports are picked from the dynamic/private range.
const (
	PortRangeStart = 49152
	PortRangeEnd   = 65535
)

// PortRegistry tracks tunnel ports currently allocated to Edge environments
// so concurrent registrations cannot hand out the same port twice.
type PortRegistry struct {
	mu    sync.Mutex
	inUse map[int]struct{}
}

func NewPortRegistry() *PortRegistry {
	return &PortRegistry{inUse: make(map[int]struct{})}
}

// Claim atomically reserves a port. It returns false when the port is already
// taken.
func (r *PortRegistry) Claim(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.inUse[port]; taken {
		return false
	}
	r.inUse[port] = struct{}{}
	return true
}

// Release frees a previously claimed port. Releasing an unclaimed port is a
// no-op.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inUse, port)
}

// InUse reports whether a port is currently reserved.
func (r *PortRegistry) InUse(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.inUse[port]
	return taken
}
