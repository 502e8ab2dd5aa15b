package core

import (
	"context"
	"crypto/tls"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/flotilla/internal/blobstore"
	"github.com/edvin/flotilla/internal/model"
	"github.com/edvin/flotilla/internal/tunnel"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Row / Rows ----------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Mock collaborators ----------

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context, url string, tlsConfig *tls.Config) (bool, error) {
	args := m.Called(ctx, url, tlsConfig)
	return args.Bool(0), args.Error(1)
}

type mockAzureProber struct {
	mock.Mock
}

func (m *mockAzureProber) Authenticate(ctx context.Context, credentials *model.AzureCredentials) error {
	args := m.Called(ctx, credentials)
	return args.Error(0)
}

type mockSnapshotter struct {
	mock.Mock
}

func (m *mockSnapshotter) Capture(ctx context.Context, env *model.Environment, tlsConfig *tls.Config) (*model.Snapshot, error) {
	args := m.Called(ctx, env, tlsConfig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Snapshot), args.Error(1)
}

type mockKeyGenerator struct {
	mock.Mock
}

func (m *mockKeyGenerator) Generate(requestURL string) (*tunnel.Allocation, error) {
	args := m.Called(requestURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tunnel.Allocation), args.Error(1)
}

func (m *mockKeyGenerator) Claim(port int) bool {
	args := m.Called(port)
	return args.Bool(0)
}

func (m *mockKeyGenerator) Release(port int) {
	m.Called(port)
}

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Store(ctx context.Context, folder string, kind blobstore.FileKind, data []byte) (string, error) {
	args := m.Called(ctx, folder, kind, data)
	return args.String(0), args.Error(1)
}

func (m *mockBlobStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockBlobStore) Remove(ctx context.Context, folder string) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}
