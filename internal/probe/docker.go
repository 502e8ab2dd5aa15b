package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// AgentHeader is set by the flotilla agent on ping responses. Its presence
// distinguishes an agent-fronted engine from a bare one.
const AgentHeader = "Flotilla-Agent"

const defaultProbeTimeout = 5 * time.Second

// DockerPinger probes Docker-class environments with a bounded timeout.
type DockerPinger struct {
	timeout time.Duration
	logger  zerolog.Logger
}

func NewDockerPinger(logger zerolog.Logger) *DockerPinger {
	return &DockerPinger{
		timeout: defaultProbeTimeout,
		logger:  logger.With().Str("component", "docker-pinger").Logger(),
	}
}

// Ping issues the engine liveness request against url, optionally over TLS.
// It returns whether the target is fronted by an agent. Any transport error,
// timeout, or non-2xx response is reported as a failed probe; the caller
// decides whether that is fatal.
func (p *DockerPinger) Ping(ctx context.Context, url string, tlsConfig *tls.Config) (bool, error) {
	endpoint := pingEndpoint(url, tlsConfig != nil)

	client := &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build ping request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("ping %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("ping %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	agent := resp.Header.Get(AgentHeader) != ""
	p.logger.Debug().Str("url", url).Bool("agent", agent).Msg("ping succeeded")
	return agent, nil
}

// pingEndpoint rewrites a stored environment URL into the HTTP(S) liveness
// endpoint exposed by the engine and the agent alike.
func pingEndpoint(url string, useTLS bool) string {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	host := url
	for _, prefix := range []string{"tcp://", "http://", "https://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	return scheme + "://" + host + "/_ping"
}
