package model

import (
	"fmt"
	"strings"
	"time"
)

// EnvironmentType identifies the kind of container environment a record
// points at. The numeric values are part of the registration API contract.
type EnvironmentType int

const (
	// EnvironmentTypeDocker is a Docker engine reached directly.
	EnvironmentTypeDocker EnvironmentType = 1
	// EnvironmentTypeDockerAgent is a Docker engine fronted by a flotilla agent.
	EnvironmentTypeDockerAgent EnvironmentType = 2
	// EnvironmentTypeAzure is an Azure container instances API.
	EnvironmentTypeAzure EnvironmentType = 3
	// EnvironmentTypeEdgeAgent is an agent connecting back through a reverse tunnel.
	EnvironmentTypeEdgeAgent EnvironmentType = 4
)

// Environment status values.
const (
	EnvironmentStatusUp   = "up"
	EnvironmentStatusDown = "down"
)

// UnassignedGroupID is the well-known group environments fall into when the
// registration request names no group.
const UnassignedGroupID = 1

// AzureURL is the canonical URL stored for Azure environments.
const AzureURL = "https://management.azure.com"

// TLSConfiguration describes the TLS material attached to a Docker-class
// environment. Certificate bytes are never stored inline; the paths reference
// the blob store.
type TLSConfiguration struct {
	TLS                 bool   `json:"tls" db:"tls"`
	TLSSkipVerify       bool   `json:"tls_skip_verify" db:"tls_skip_verify"`
	TLSSkipClientVerify bool   `json:"tls_skip_client_verify" db:"tls_skip_client_verify"`
	TLSCACertPath       string `json:"tls_ca_cert_path,omitempty" db:"tls_ca_cert_path"`
	TLSCertPath         string `json:"tls_cert_path,omitempty" db:"tls_cert_path"`
	TLSKeyPath          string `json:"tls_key_path,omitempty" db:"tls_key_path"`
}

// AzureCredentials holds the service principal used to authenticate against
// the Azure control plane.
type AzureCredentials struct {
	ApplicationID     string `json:"application_id" db:"azure_application_id"`
	TenantID          string `json:"tenant_id" db:"azure_tenant_id"`
	AuthenticationKey string `json:"authentication_key" db:"azure_authentication_key"`
}

// Environment is a registered container runtime managed by the platform.
// Exactly one security-material variant may be present and it must match Type:
// TLSConfig for Docker-class environments, AzureCredentials for Azure, EdgeKey
// for Edge agents. Use the New*Environment constructors to keep that true.
type Environment struct {
	ID        int64             `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	URL       string            `json:"url" db:"url"`
	PublicURL string            `json:"public_url,omitempty" db:"public_url"`
	Type      EnvironmentType   `json:"type" db:"type"`
	GroupID   int64             `json:"group_id" db:"group_id"`
	Tags      []string          `json:"tags" db:"tags"`
	TLSConfig *TLSConfiguration `json:"tls_config,omitempty" db:"-"`
	Azure     *AzureCredentials `json:"azure_credentials,omitempty" db:"-"`
	EdgeKey   string            `json:"edge_key,omitempty" db:"edge_key"`
	Status    string            `json:"status" db:"status"`
	Snapshots []Snapshot        `json:"snapshots" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// NewDockerEnvironment builds a Docker-class environment record. A nil
// tlsConfig means an unsecured engine and is normalized to an explicit
// TLS=false configuration. agent selects the agent-fronted type.
func NewDockerEnvironment(name, url, publicURL string, groupID int64, tags []string, tlsConfig *TLSConfiguration, agent bool) *Environment {
	envType := EnvironmentTypeDocker
	if agent {
		envType = EnvironmentTypeDockerAgent
	}
	if tlsConfig == nil {
		tlsConfig = &TLSConfiguration{TLS: false}
	}
	return newEnvironment(name, url, publicURL, envType, groupID, tags, func(e *Environment) {
		e.TLSConfig = tlsConfig
	})
}

// NewAzureEnvironment builds an Azure environment record. The stored URL is
// always the Azure management endpoint.
func NewAzureEnvironment(name, publicURL string, groupID int64, tags []string, credentials AzureCredentials) *Environment {
	return newEnvironment(name, AzureURL, publicURL, EnvironmentTypeAzure, groupID, tags, func(e *Environment) {
		e.Azure = &credentials
	})
}

// NewEdgeEnvironment builds an Edge agent environment record. The URL is the
// local tunnel rendezvous address, not the remote agent address. TLS is
// explicitly disabled; the tunnel itself carries the transport security.
func NewEdgeEnvironment(name, tunnelURL string, groupID int64, tags []string, edgeKey string) *Environment {
	return newEnvironment(name, tunnelURL, "", EnvironmentTypeEdgeAgent, groupID, tags, func(e *Environment) {
		e.TLSConfig = &TLSConfiguration{TLS: false}
		e.EdgeKey = edgeKey
	})
}

func newEnvironment(name, url, publicURL string, envType EnvironmentType, groupID int64, tags []string, set func(*Environment)) *Environment {
	if groupID == 0 {
		groupID = UnassignedGroupID
	}
	if tags == nil {
		tags = []string{}
	}
	now := time.Now()
	e := &Environment{
		Name:      name,
		URL:       url,
		PublicURL: publicURL,
		Type:      envType,
		GroupID:   groupID,
		Tags:      tags,
		Status:    EnvironmentStatusUp,
		Snapshots: []Snapshot{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	set(e)
	return e
}

// Validate checks the structural invariants of a record: a known type, a set
// status, tags present, and the security-material variant matching the type.
func (e *Environment) Validate() error {
	if e.Status != EnvironmentStatusUp && e.Status != EnvironmentStatusDown {
		return fmt.Errorf("environment %q: status is unset", e.Name)
	}
	if e.Tags == nil {
		return fmt.Errorf("environment %q: tags must be a sequence, not absent", e.Name)
	}
	switch e.Type {
	case EnvironmentTypeDocker, EnvironmentTypeDockerAgent:
		if e.TLSConfig == nil {
			return fmt.Errorf("environment %q: docker environment without TLS configuration", e.Name)
		}
		if e.Azure != nil || e.EdgeKey != "" {
			return fmt.Errorf("environment %q: docker environment carries foreign security material", e.Name)
		}
	case EnvironmentTypeAzure:
		if e.Azure == nil {
			return fmt.Errorf("environment %q: azure environment without credentials", e.Name)
		}
		if e.TLSConfig != nil || e.EdgeKey != "" {
			return fmt.Errorf("environment %q: azure environment carries foreign security material", e.Name)
		}
	case EnvironmentTypeEdgeAgent:
		if e.EdgeKey == "" {
			return fmt.Errorf("environment %q: edge environment without edge key", e.Name)
		}
		if e.Azure != nil {
			return fmt.Errorf("environment %q: edge environment carries foreign security material", e.Name)
		}
		if e.TLSConfig != nil && e.TLSConfig.TLS {
			return fmt.Errorf("environment %q: edge environment must not enable TLS", e.Name)
		}
	default:
		return fmt.Errorf("environment %q: unknown type %d", e.Name, e.Type)
	}
	return nil
}

// DisplayURL returns the URL with the transport scheme stripped, for
// rendering. The stored URL keeps the scheme.
func (e *Environment) DisplayURL() string {
	for _, prefix := range []string{"tcp://", "unix://", "npipe://", "https://", "http://"} {
		if strings.HasPrefix(e.URL, prefix) {
			return strings.TrimPrefix(e.URL, prefix)
		}
	}
	return e.URL
}
