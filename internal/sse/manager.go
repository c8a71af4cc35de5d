package sse

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/photoshelf/internal/id"
)

const (
	queueSize       = 1000
	clientQueueSize = 100
)

// Client is one subscriber to the change feed.
type Client struct {
	ConnectedAt time.Time
	Events      chan Event
	Done        chan struct{}
	ID          string

	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		close(c.Events)
	})
}

// Emitter receives change notifications.
type Emitter interface {
	Emit(event Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}

// Manager fans photo and tag changes out to every connected client.
// A client that cannot keep up loses events; the library never waits on it.
type Manager struct {
	logger    *slog.Logger
	queue     chan Event
	quit      chan struct{}
	stopOnce  sync.Once
	loop      sync.WaitGroup
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[string]*Client

	scanning atomic.Bool
}

// NewManager creates a manager. Call Start to begin delivering events.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		queue:     make(chan Event, queueSize),
		quit:      make(chan struct{}),
		heartbeat: 30 * time.Second,
		clients:   make(map[string]*Client),
	}
}

// Start delivers queued events until ctx ends or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Add(1)
	defer m.loop.Done()

	m.logger.Info("change feed started")

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event := <-m.queue:
			m.deliver(event)
		case <-ticker.C:
			m.deliver(NewHeartbeatEvent())
		case <-m.quit:
			return
		case <-ctx.Done():
			m.logger.Info("change feed stopping")
			m.closeClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is still queued and closes
// every client. It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.quit) })

	stopped := make(chan struct{})
	go func() {
		m.loop.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		m.logger.Warn("change feed did not stop in time")
	}

	m.drain()
	m.closeClients()
	return nil
}

// drain delivers queued events without blocking.
func (m *Manager) drain() {
	for {
		select {
		case event := <-m.queue:
			m.deliver(event)
		default:
			return
		}
	}
}

func (m *Manager) deliver(event Event) {
	//nolint:exhaustive // Only scan events change state.
	switch event.Type {
	case EventScanStarted:
		m.scanning.Store(true)
	case EventScanComplete:
		m.scanning.Store(false)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	dropped := 0
	for _, c := range m.clients {
		select {
		case c.Events <- event:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		m.logger.Warn("slow clients missed an event",
			"event", event.Type,
			"dropped", dropped,
		)
	}
	if event.Type != EventHeartbeat {
		m.logger.Debug("event delivered",
			"event", event.Type,
			"clients", len(m.clients)-dropped,
		)
	}
}

// Connect subscribes a new client.
func (m *Manager) Connect() (*Client, error) {
	suffix, err := id.Suffix()
	if err != nil {
		return nil, err
	}

	c := &Client{
		ID:          "sse-" + suffix,
		Events:      make(chan Event, clientQueueSize),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[c.ID] = c
	n := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("feed client connected", "client", c.ID, "clients", n)
	return c, nil
}

// Disconnect unsubscribes the client and closes its channels.
// Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	delete(m.clients, clientID)
	n := len(m.clients)
	m.mu.Unlock()

	if !ok {
		return
	}
	c.close()

	m.logger.Info("feed client disconnected",
		"client", clientID,
		"connected_for", time.Since(c.ConnectedAt),
		"clients", n,
	)
}

// Emit queues event for delivery. Events emitted after Shutdown, or while the
// queue is full, are dropped.
func (m *Manager) Emit(event Event) {
	select {
	case <-m.quit:
		return
	default:
	}

	select {
	case m.queue <- event:
	default:
		m.logger.Error("change feed queue full, dropping event", "event", event.Type)
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsScanning reports whether a library scan is in progress.
func (m *Manager) IsScanning() bool {
	return m.scanning.Load()
}

// SetScanning overrides the scanning flag.
func (m *Manager) SetScanning(scanning bool) {
	m.scanning.Store(scanning)
}

func (m *Manager) closeClients() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		m.logger.Info("feed clients closed", "count", len(clients))
	}
}
