package core

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/edvin/flotilla/internal/blobstore"
	"github.com/edvin/flotilla/internal/crypto"
	"github.com/edvin/flotilla/internal/model"
	"github.com/edvin/flotilla/internal/tunnel"
)

var registrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "environment_registrations_total",
		Help: "Total number of environment registration attempts",
	},
	[]string{"type", "result"},
)

// RegistrationRequest is the validated intent produced by the request parser.
// Conditional fields are populated according to Type; see the parser for the
// exact rules.
type RegistrationRequest struct {
	Name                string
	Type                model.EnvironmentType
	URL                 string
	PublicURL           string
	GroupID             int64
	Tags                []string
	TLS                 bool
	TLSSkipVerify       bool
	TLSSkipClientVerify bool
	TLSCACertFile       []byte
	TLSCertFile         []byte
	TLSKeyFile          []byte

	AzureApplicationID     string
	AzureTenantID          string
	AzureAuthenticationKey string
}

// DockerProber pings a Docker-class environment and reports whether an agent
// fronts the engine.
type DockerProber interface {
	Ping(ctx context.Context, url string, tlsConfig *tls.Config) (agent bool, err error)
}

// AzureProber validates Azure credentials against the cloud control plane.
type AzureProber interface {
	Authenticate(ctx context.Context, credentials *model.AzureCredentials) error
}

// Snapshotter captures a one-shot inventory of a reachable environment.
type Snapshotter interface {
	Capture(ctx context.Context, env *model.Environment, tlsConfig *tls.Config) (*model.Snapshot, error)
}

// EdgeKeyGenerator reserves a tunnel port and derives the edge key for an
// Edge agent registration.
type EdgeKeyGenerator interface {
	Generate(requestURL string) (*tunnel.Allocation, error)
	Claim(port int) bool
	Release(port int)
}

// EnvironmentService orchestrates environment registration: credential
// derivation, connectivity probing, snapshotting and the final persistence
// write, with the soft/hard failure policy of each environment type.
type EnvironmentService struct {
	db          DB
	blobs       blobstore.Store
	pinger      DockerProber
	azure       AzureProber
	snapshotter Snapshotter
	keygen      EdgeKeyGenerator
	logger      zerolog.Logger
}

func NewEnvironmentService(db DB, blobs blobstore.Store, pinger DockerProber, azure AzureProber, snapshotter Snapshotter, keygen EdgeKeyGenerator, logger zerolog.Logger) *EnvironmentService {
	return &EnvironmentService{
		db:          db,
		blobs:       blobs,
		pinger:      pinger,
		azure:       azure,
		snapshotter: snapshotter,
		keygen:      keygen,
		logger:      logger.With().Str("component", "environment-service").Logger(),
	}
}

// Create registers a new environment. On hard failures no record is created
// and no identifier is consumed; on the soft-fail path (unsecured Docker with
// an unreachable target) the record is persisted with status down.
func (s *EnvironmentService) Create(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	env, err := s.create(ctx, req)
	registrationsTotal.WithLabelValues(typeLabel(req), resultLabel(err)).Inc()
	return env, err
}

func (s *EnvironmentService) create(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	switch {
	case req.Type == model.EnvironmentTypeAzure:
		return s.createAzure(ctx, req)
	case req.Type == model.EnvironmentTypeEdgeAgent:
		return s.createEdgeAgent(ctx, req)
	case req.TLS:
		return s.createTLSSecured(ctx, req)
	default:
		return s.createUnsecured(ctx, req)
	}
}

func (s *EnvironmentService) createAzure(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	credentials := model.AzureCredentials{
		ApplicationID:     req.AzureApplicationID,
		TenantID:          req.AzureTenantID,
		AuthenticationKey: req.AzureAuthenticationKey,
	}

	if err := s.azure.Authenticate(ctx, &credentials); err != nil {
		return nil, &ProbeError{URL: model.AzureURL, Err: err}
	}

	env := model.NewAzureEnvironment(req.Name, req.PublicURL, req.GroupID, req.Tags, credentials)

	id, err := s.nextIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	env.ID = id

	if err := s.insert(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

func (s *EnvironmentService) createEdgeAgent(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	alloc, err := s.keygen.Generate(req.URL)
	if err != nil {
		return nil, fmt.Errorf("generate edge key: %w", err)
	}

	env := model.NewEdgeEnvironment(req.Name, alloc.URL, req.GroupID, req.Tags, alloc.Key)

	id, err := s.nextIdentifier(ctx)
	if err != nil {
		s.keygen.Release(alloc.Port)
		return nil, err
	}
	env.ID = id

	if err := s.insert(ctx, env); err != nil {
		s.keygen.Release(alloc.Port)
		return nil, err
	}
	return env, nil
}

func (s *EnvironmentService) createUnsecured(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	url := req.URL
	agent := false
	reachable := true

	if url == "" {
		// Local default engine; no probe, the snapshot attempt decides status.
		url = "unix:///var/run/docker.sock"
		if runtime.GOOS == "windows" {
			url = "npipe:////./pipe/docker_engine"
		}
	} else {
		var err error
		agent, err = s.pinger.Ping(ctx, url, nil)
		if err != nil {
			// Soft-fail: keep the record so the operator can repair
			// connectivity without re-entering everything.
			s.logger.Warn().Str("name", req.Name).Str("url", url).Err(err).Msg("environment unreachable, registering as down")
			reachable = false
		}
	}

	env := model.NewDockerEnvironment(req.Name, url, req.PublicURL, req.GroupID, req.Tags, nil, agent)

	id, err := s.nextIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	env.ID = id

	if !reachable {
		env.Status = model.EnvironmentStatusDown
		env.Snapshots = []model.Snapshot{}
		if err := s.insert(ctx, env); err != nil {
			return nil, err
		}
		return env, nil
	}

	if err := s.snapshotAndPersist(ctx, env, nil); err != nil {
		return nil, err
	}
	return env, nil
}

func (s *EnvironmentService) createTLSSecured(ctx context.Context, req *RegistrationRequest) (*model.Environment, error) {
	tlsConfig, err := crypto.CreateTLSConfiguration(req.TLSCACertFile, req.TLSCertFile, req.TLSKeyFile, req.TLSSkipClientVerify, req.TLSSkipVerify)
	if err != nil {
		return nil, &CredentialError{Reason: "invalid TLS material", Err: err}
	}

	agent, err := s.pinger.Ping(ctx, req.URL, tlsConfig)
	if err != nil {
		return nil, &ProbeError{URL: req.URL, Err: err}
	}

	tc := &model.TLSConfiguration{
		TLS:                 true,
		TLSSkipVerify:       req.TLSSkipVerify,
		TLSSkipClientVerify: req.TLSSkipClientVerify,
	}
	env := model.NewDockerEnvironment(req.Name, req.URL, req.PublicURL, req.GroupID, req.Tags, tc, agent)

	id, err := s.nextIdentifier(ctx)
	if err != nil {
		return nil, err
	}
	env.ID = id

	if err := s.storeTLSFiles(ctx, env, req); err != nil {
		return nil, err
	}

	if err := s.snapshotAndPersist(ctx, env, tlsConfig); err != nil {
		// The artifacts written above are orphaned now; clean up best-effort.
		s.removeTLSFiles(ctx, env.ID)
		return nil, err
	}
	return env, nil
}

// snapshotAndPersist captures an inventory snapshot and writes the record.
// Snapshot failure only downgrades status; persistence failure aborts.
func (s *EnvironmentService) snapshotAndPersist(ctx context.Context, env *model.Environment, tlsConfig *tls.Config) error {
	snap, err := s.snapshotter.Capture(ctx, env, tlsConfig)
	env.Status = model.EnvironmentStatusUp
	if err != nil {
		s.logger.Warn().Str("name", env.Name).Str("url", env.URL).Err(err).Msg("environment snapshot failed")
		env.Status = model.EnvironmentStatusDown
	}
	if snap != nil {
		env.Snapshots = []model.Snapshot{*snap}
	}

	return s.insert(ctx, env)
}

// storeTLSFiles writes the uploaded PEM material into the blob store, keyed
// by the environment identifier, and records the returned path references.
// A partial write is rolled back so no persisted record can reference it.
func (s *EnvironmentService) storeTLSFiles(ctx context.Context, env *model.Environment, req *RegistrationRequest) error {
	folder := strconv.FormatInt(env.ID, 10)

	if !req.TLSSkipVerify {
		caPath, err := s.blobs.Store(ctx, folder, blobstore.FileCA, req.TLSCACertFile)
		if err != nil {
			s.removeTLSFiles(ctx, env.ID)
			return &PersistenceError{Op: "store CA certificate", Err: err}
		}
		env.TLSConfig.TLSCACertPath = caPath
	}

	if !req.TLSSkipClientVerify {
		certPath, err := s.blobs.Store(ctx, folder, blobstore.FileCert, req.TLSCertFile)
		if err != nil {
			s.removeTLSFiles(ctx, env.ID)
			return &PersistenceError{Op: "store client certificate", Err: err}
		}
		env.TLSConfig.TLSCertPath = certPath

		keyPath, err := s.blobs.Store(ctx, folder, blobstore.FileKey, req.TLSKeyFile)
		if err != nil {
			s.removeTLSFiles(ctx, env.ID)
			return &PersistenceError{Op: "store client key", Err: err}
		}
		env.TLSConfig.TLSKeyPath = keyPath
	}

	return nil
}

func (s *EnvironmentService) removeTLSFiles(ctx context.Context, id int64) {
	if err := s.blobs.Remove(ctx, strconv.FormatInt(id, 10)); err != nil {
		s.logger.Warn().Int64("environment_id", id).Err(err).Msg("failed to clean up TLS artifacts")
	}
}

// nextIdentifier allocates the next environment id from the shared sequence.
// Allocation happens immediately before record construction so hard-failed
// registrations never consume an identifier.
func (s *EnvironmentService) nextIdentifier(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT nextval('environment_id_seq')`).Scan(&id)
	if err != nil {
		return 0, &PersistenceError{Op: "allocate identifier", Err: err}
	}
	return id, nil
}

func (s *EnvironmentService) insert(ctx context.Context, env *model.Environment) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("environment record invalid: %w", err)
	}

	snapshots, err := json.Marshal(env.Snapshots)
	if err != nil {
		return &PersistenceError{Op: "encode snapshots", Err: err}
	}

	var tc model.TLSConfiguration
	if env.TLSConfig != nil {
		tc = *env.TLSConfig
	}
	var az model.AzureCredentials
	if env.Azure != nil {
		az = *env.Azure
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO environments (id, name, url, public_url, type, group_id, tags,
		    tls, tls_skip_verify, tls_skip_client_verify, tls_ca_cert_path, tls_cert_path, tls_key_path,
		    azure_application_id, azure_tenant_id, azure_authentication_key,
		    edge_key, status, snapshots, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		env.ID, env.Name, env.URL, env.PublicURL, int(env.Type), env.GroupID, env.Tags,
		tc.TLS, tc.TLSSkipVerify, tc.TLSSkipClientVerify, tc.TLSCACertPath, tc.TLSCertPath, tc.TLSKeyPath,
		az.ApplicationID, az.TenantID, az.AuthenticationKey,
		env.EdgeKey, env.Status, snapshots, env.CreatedAt, env.UpdatedAt,
	)
	if err != nil {
		return &PersistenceError{Op: "create environment", Err: err}
	}
	return nil
}

const environmentColumns = `id, name, url, public_url, type, group_id, tags,
	tls, tls_skip_verify, tls_skip_client_verify, tls_ca_cert_path, tls_cert_path, tls_key_path,
	azure_application_id, azure_tenant_id, azure_authentication_key,
	edge_key, status, snapshots, created_at, updated_at`

func (s *EnvironmentService) GetByID(ctx context.Context, id int64) (*model.Environment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = $1`, id)
	env, err := scanEnvironment(row)
	if err != nil {
		return nil, fmt.Errorf("get environment %d: %w", id, err)
	}
	return env, nil
}

func (s *EnvironmentService) List(ctx context.Context, limit int, cursor int64) ([]model.Environment, bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+environmentColumns+` FROM environments WHERE id > $1 ORDER BY id LIMIT $2`,
		cursor, limit+1,
	)
	if err != nil {
		return nil, false, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	var envs []model.Environment
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan environment: %w", err)
		}
		envs = append(envs, *env)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate environments: %w", err)
	}

	hasMore := len(envs) > limit
	if hasMore {
		envs = envs[:limit]
	}
	return envs, hasMore, nil
}

// Delete removes an environment record together with its stored TLS
// artifacts; Edge environments give their tunnel port back to the registry.
func (s *EnvironmentService) Delete(ctx context.Context, id int64) error {
	env, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM environments WHERE id = $1`, id); err != nil {
		return &PersistenceError{Op: "delete environment", Err: err}
	}

	if env.TLSConfig != nil && env.TLSConfig.TLS {
		s.removeTLSFiles(ctx, id)
	}
	if env.Type == model.EnvironmentTypeEdgeAgent {
		if port, ok := tunnelPort(env.URL); ok {
			s.keygen.Release(port)
		}
	}
	return nil
}

func scanEnvironment(row interface{ Scan(dest ...any) error }) (*model.Environment, error) {
	var (
		env       model.Environment
		envType   int
		tc        model.TLSConfiguration
		az        model.AzureCredentials
		snapshots []byte
	)
	err := row.Scan(&env.ID, &env.Name, &env.URL, &env.PublicURL, &envType, &env.GroupID, &env.Tags,
		&tc.TLS, &tc.TLSSkipVerify, &tc.TLSSkipClientVerify, &tc.TLSCACertPath, &tc.TLSCertPath, &tc.TLSKeyPath,
		&az.ApplicationID, &az.TenantID, &az.AuthenticationKey,
		&env.EdgeKey, &env.Status, &snapshots, &env.CreatedAt, &env.UpdatedAt)
	if err != nil {
		return nil, err
	}

	env.Type = model.EnvironmentType(envType)
	switch env.Type {
	case model.EnvironmentTypeAzure:
		env.Azure = &az
	default:
		env.TLSConfig = &tc
	}

	if env.Tags == nil {
		env.Tags = []string{}
	}
	env.Snapshots = []model.Snapshot{}
	if len(snapshots) > 0 {
		if err := json.Unmarshal(snapshots, &env.Snapshots); err != nil {
			return nil, fmt.Errorf("decode snapshots: %w", err)
		}
	}
	return &env, nil
}

// RestoreTunnelPorts re-claims the tunnel ports of persisted Edge
// environments so a restarted server cannot hand them out again.
func (s *EnvironmentService) RestoreTunnelPorts(ctx context.Context) error {
	rows, err := s.db.Query(ctx,
		`SELECT url FROM environments WHERE type = $1`, int(model.EnvironmentTypeEdgeAgent))
	if err != nil {
		return fmt.Errorf("list edge environments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return fmt.Errorf("scan edge environment url: %w", err)
		}
		if port, ok := tunnelPort(url); ok {
			if !s.keygen.Claim(port) {
				s.logger.Warn().Int("port", port).Msg("tunnel port already claimed during restore")
			}
		}
	}
	return rows.Err()
}

// tunnelPort extracts the reserved port from an Edge rendezvous URL
// (tcp://localhost:<port>).
func tunnelPort(url string) (int, bool) {
	idx := strings.LastIndex(url, ":")
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, false
	}
	return port, true
}

func typeLabel(req *RegistrationRequest) string {
	switch req.Type {
	case model.EnvironmentTypeAzure:
		return "azure"
	case model.EnvironmentTypeEdgeAgent:
		return "edge"
	case model.EnvironmentTypeDockerAgent:
		return "docker_agent"
	default:
		return "docker"
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "rejected"
	}
	return "created"
}
