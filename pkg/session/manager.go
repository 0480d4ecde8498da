package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/metrics"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	defaultFetchTimeout  = 5 * time.Second
	defaultSubmitTimeout = 10 * time.Second
	replyMargin          = 2 * time.Second
)

// Manager spawns session actors and routes commands to them by session id.
type Manager struct {
	system    *actor.ActorSystem
	catalog   catalog.Catalog
	submitter Submitter
	policy    wizard.Policy
	cfg       config.WizardConfig
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*actor.PID
}

func NewManager(system *actor.ActorSystem, cfg config.WizardConfig, policy wizard.Policy,
	cat catalog.Catalog, submitter Submitter, logger *zap.Logger) *Manager {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}

	timeout := cfg.FetchTimeout
	if cfg.SubmitTimeout > timeout {
		timeout = cfg.SubmitTimeout
	}

	return &Manager{
		system:    system,
		catalog:   cat,
		submitter: submitter,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
		timeout:   timeout + replyMargin,
		now:       time.Now,
		sessions:  make(map[string]*actor.PID),
	}
}

func (m *Manager) Policy() wizard.Policy {
	return m.policy
}

// Create starts a session and returns its first snapshot, with the customer
// list loaded.
func (m *Manager) Create(ctx context.Context) (Snapshot, error) {
	id := uuid.NewString()
	logger := m.logger.With(zap.String("session_id", id))

	props := actor.PropsFromProducer(func() actor.Actor {
		return &sessionActor{
			id:        id,
			catalog:   m.catalog,
			submitter: m.submitter,
			policy:    m.policy,
			cfg:       m.cfg,
			logger:    logger,
			onStopped: m.remove,
			now:       m.now,
			state:     wizard.New(),
		}
	})

	m.mu.Lock()
	pid, err := m.system.Root.SpawnNamed(props, "session-"+id)
	if err != nil {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("failed to spawn session actor: %w", err)
	}
	m.sessions[id] = pid
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	return m.Do(ctx, id, &GetSnapshot{})
}

func (m *Manager) lookup(id string) (*actor.PID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.sessions[id]
	return pid, ok
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
	}
}

// Do sends cmd to session id and waits for its reply. A rejected command
// returns the unchanged snapshot together with the rejection.
func (m *Manager) Do(ctx context.Context, id string, cmd Command) (Snapshot, error) {
	pid, ok := m.lookup(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return Snapshot{}, context.DeadlineExceeded
	}

	res, err := m.system.Root.RequestFuture(pid, cmd, timeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrDeadLetter) {
			return Snapshot{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		}
		return Snapshot{}, fmt.Errorf("session %s: %w", id, err)
	}

	reply, ok := res.(*Reply)
	if !ok {
		return Snapshot{}, fmt.Errorf("session %s: unexpected reply %T", id, res)
	}
	return reply.Snapshot, reply.Err
}

// Delete stops session id and waits for it to terminate.
func (m *Manager) Delete(id string) error {
	pid, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err := m.system.Root.StopFuture(pid).Wait(); err != nil {
		return fmt.Errorf("failed to stop session %s: %w", id, err)
	}
	m.remove(id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	pids := make([]*actor.PID, 0, len(m.sessions))
	for _, pid := range m.sessions {
		pids = append(pids, pid)
	}
	m.mu.RUnlock()

	for _, pid := range pids {
		_ = m.system.Root.StopFuture(pid).Wait()
	}
	m.logger.Info("All sessions stopped", zap.Int("count", len(pids)))
}
