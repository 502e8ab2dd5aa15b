package snapshot

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/flotilla/internal/model"
)

const defaultSnapshotTimeout = 15 * time.Second

// DockerSnapshotter captures a one-shot inventory of a reachable Docker
// environment through the engine API.
type DockerSnapshotter struct {
	timeout time.Duration
	logger  zerolog.Logger
}

func NewDockerSnapshotter(logger zerolog.Logger) *DockerSnapshotter {
	return &DockerSnapshotter{
		timeout: defaultSnapshotTimeout,
		logger:  logger.With().Str("component", "snapshotter").Logger(),
	}
}

// Capture collects engine info and resource counts concurrently and returns a
// single snapshot. Errors are reported to the caller, which treats them as a
// status signal rather than a registration failure.
func (s *DockerSnapshotter) Capture(ctx context.Context, env *model.Environment, tlsConfig *tls.Config) (*model.Snapshot, error) {
	cli, err := s.newClient(env.URL, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("create engine client for %s: %w", env.URL, err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		info       system.Info
		version    types.Version
		containers []types.Container
		images     []image.Summary
		volumes    volume.ListResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = cli.Info(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		version, err = cli.ServerVersion(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		containers, err = cli.ContainerList(gctx, container.ListOptions{All: true})
		return err
	})
	g.Go(func() error {
		var err error
		images, err = cli.ImageList(gctx, image.ListOptions{})
		return err
	})
	g.Go(func() error {
		var err error
		volumes, err = cli.VolumeList(gctx, volume.ListOptions{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("inventory %s: %w", env.URL, err)
	}

	snap := &model.Snapshot{
		Time:          time.Now().Unix(),
		DockerVersion: version.Version,
		TotalCPU:      info.NCPU,
		TotalMemory:   info.MemTotal,
		ImageCount:    len(images),
		VolumeCount:   len(volumes.Volumes),
	}
	for _, c := range containers {
		if c.State == "running" {
			snap.RunningContainerCount++
		} else {
			snap.StoppedContainerCount++
		}
	}

	s.logger.Debug().
		Str("url", env.URL).
		Int("running", snap.RunningContainerCount).
		Int("stopped", snap.StoppedContainerCount).
		Msg("captured snapshot")

	return snap, nil
}

func (s *DockerSnapshotter) newClient(host string, tlsConfig *tls.Config) (*client.Client, error) {
	opts := []client.Opt{
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}
	if tlsConfig != nil {
		opts = append(opts, client.WithHTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
			Timeout:   s.timeout,
		}))
	}
	return client.NewClientWithOpts(opts...)
}
