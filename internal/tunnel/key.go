package tunnel

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// maxClaimAttempts bounds the retry loop when the dynamic port range is
// heavily allocated.
const maxClaimAttempts = 64

// Key binds the parameters of one Edge tunnel session. The encoded form
// handed to the agent is a digest over the canonical serialization, not the
// parameters themselves; the server keeps the real values.
type Key struct {
	TunnelServerAddr        string
	TunnelServerPort        string
	TunnelPort              string
	TunnelServerFingerprint string
	Credentials             string
}

// canonical returns the fixed serialization hashed into the edge key:
// addr:serverPort:tunnelPort:fingerprint:credentials. The format is frozen so
// the digest stays reproducible across releases.
func (k Key) canonical() []byte {
	return []byte(strings.Join([]string{
		k.TunnelServerAddr,
		k.TunnelServerPort,
		k.TunnelPort,
		k.TunnelServerFingerprint,
		k.Credentials,
	}, ":"))
}

// Encode computes the opaque edge key: the URL-safe unpadded base64 encoding
// of the SHA-256 digest over the canonical form.
func (k Key) Encode() string {
	digest := sha256.Sum256(k.canonical())
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// Allocation is the result of generating an edge key: the encoded key, the
// reserved tunnel port, and the local rendezvous URL stored on the
// environment record.
type Allocation struct {
	Key  string
	Port int
	URL  string
}

// KeyGenerator allocates tunnel ports and derives edge keys. The randomness
// source is injected so port selection is deterministic under test; access to
// it is serialized because math/rand sources are not safe for concurrent use.
type KeyGenerator struct {
	ports       *PortRegistry
	fingerprint string
	serverPort  string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewKeyGenerator(ports *PortRegistry, fingerprint, serverPort string, rng *rand.Rand) *KeyGenerator {
	return &KeyGenerator{
		ports:       ports,
		fingerprint: fingerprint,
		serverPort:  serverPort,
		rng:         rng,
	}
}

// Generate reserves a tunnel port and derives the edge key for an agent that
// will dial back to the host named in the registration request URL.
func (g *KeyGenerator) Generate(requestURL string) (*Allocation, error) {
	port, err := g.claimPort()
	if err != nil {
		return nil, err
	}

	key := Key{
		TunnelServerAddr:        strings.TrimPrefix(requestURL, "tcp://"),
		TunnelServerPort:        g.serverPort,
		TunnelPort:              strconv.Itoa(port),
		TunnelServerFingerprint: g.fingerprint,
		Credentials:             "agent@" + uuid.New().String(),
	}

	return &Allocation{
		Key:  key.Encode(),
		Port: port,
		URL:  "tcp://localhost:" + strconv.Itoa(port),
	}, nil
}

// Claim reserves a specific port, used when restoring persisted Edge
// environments at startup.
func (g *KeyGenerator) Claim(port int) bool {
	return g.ports.Claim(port)
}

// Release frees a reserved port when a registration fails after allocation.
func (g *KeyGenerator) Release(port int) {
	g.ports.Release(port)
}

func (g *KeyGenerator) claimPort() (int, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		port := g.randomPort()
		if g.ports.Claim(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free tunnel port in [%d, %d) after %d attempts", PortRangeStart, PortRangeEnd, maxClaimAttempts)
}

func (g *KeyGenerator) randomPort() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PortRangeStart + g.rng.Intn(PortRangeEnd-PortRangeStart)
}
