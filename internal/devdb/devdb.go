// Package devdb runs a throwaway PostgreSQL server in Docker for local
// development and integration tests of the postgres store.
package devdb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	DefaultPassword = "liferpg"
	DefaultDatabase = "liferpg"
	DefaultImage    = "postgres:16-alpine"
	defaultUsername = "postgres"
	containerLabel  = "liferpg-devdb"
)

var (
	ErrAlreadyRunning = errors.New("postgres container already running")
	ErrNotRunning     = errors.New("no postgres container is running")
)

// DockerAvailable reports whether the Docker daemon answers. testcontainers
// panics when Docker is missing, so callers probe first.
func DockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// Options configures the container. Zero fields use the defaults.
type Options struct {
	Password string
	Database string
	Image    string
}

func (o Options) withDefaults() Options {
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.Image == "" {
		o.Image = DefaultImage
	}
	return o
}

// Status describes the managed container.
type Status struct {
	Running     bool
	ContainerID string
	ConnStr     string
	Uptime      time.Duration
}

func (s Status) String() string {
	if s.ContainerID == "" {
		return "Status: No container managed."
	}
	return fmt.Sprintf("Status: Container running\nContainer ID: %s\nConnection string: %s\nUptime: %s\nRunning: %t",
		s.ContainerID, s.ConnStr, s.Uptime.Round(time.Second), s.Running)
}

// Manager owns at most one PostgreSQL container. It is safe for concurrent
// use.
type Manager struct {
	mu        sync.Mutex
	container *postgres.PostgresContainer
	connStr   string
	startedAt time.Time
}

// NewManager returns a Manager with no running container.
func NewManager() *Manager {
	return &Manager{}
}

// ConnStr returns the connection string of the running container, or "".
func (m *Manager) ConnStr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connStr
}

// Start launches the container and waits until it accepts connections.
func (m *Manager) Start(ctx context.Context, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.container != nil {
		return m.connStr, ErrAlreadyRunning
	}
	opts = opts.withDefaults()

	pgContainer, err := postgres.Run(ctx,
		opts.Image,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(defaultUsername),
		postgres.WithPassword(opts.Password),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"managed-by": containerLabel,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		return "", fmt.Errorf("failed to get connection string: %w", err)
	}

	m.container = pgContainer
	m.connStr = connStr
	m.startedAt = time.Now()
	return connStr, nil
}

// Stop terminates and removes the container.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.container == nil {
		return ErrNotRunning
	}
	if err := testcontainers.TerminateContainer(m.container); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	m.container = nil
	m.connStr = ""
	m.startedAt = time.Time{}
	return nil
}

// Status reports on the managed container. It does not fail when nothing is
// running.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.container == nil {
		return Status{}, nil
	}
	state, err := m.container.State(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get container state: %w", err)
	}

	id := m.container.GetContainerID()
	if len(id) > 12 {
		id = id[:12]
	}
	return Status{
		Running:     state.Running,
		ContainerID: id,
		ConnStr:     m.connStr,
		Uptime:      time.Since(m.startedAt),
	}, nil
}
