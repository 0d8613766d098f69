package services

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/ports"
)

// --- Mocks ---

type mockStore struct {
	mu      sync.Mutex
	bundle  domain.TokenBundle
	saves   int
	clears  int
	loadErr error
	saveErr error
}

func (m *mockStore) LoadTokens(ctx context.Context) (domain.TokenBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.TokenBundle{}, m.loadErr
	}
	if !m.bundle.Valid() {
		return domain.TokenBundle{}, domain.ErrNotFound
	}
	return m.bundle, nil
}

func (m *mockStore) SaveTokens(ctx context.Context, b domain.TokenBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.bundle = b
	m.saves++
	return nil
}

func (m *mockStore) ClearTokens(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle = domain.TokenBundle{}
	m.clears++
	return nil
}

func (m *mockStore) snapshot() (domain.TokenBundle, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundle, m.clears
}

type mockRefresher struct {
	mu     sync.Mutex
	bundle domain.TokenBundle
	err    error
	calls  []string
	block  chan struct{}
}

func (m *mockRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenBundle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, refreshToken)
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundle, m.err
}

func (m *mockRefresher) set(fn func(m *mockRefresher)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *mockRefresher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockPlayer records calls and lets tests drive its listener.
type mockPlayer struct {
	mu          sync.Mutex
	tokenFn     ports.TokenFunc
	listener    ports.EventListener
	connectErr  error
	stateErr    error
	blockState  bool
	commandErr  error
	state       domain.PlaybackState
	connects    int
	disconnects int
	calls       []string
	volumes     []float64
	block       chan struct{}

	// connectState is reported right after Ready, the way a fresh
	// watcher reports its first observation.
	connectState *domain.PlaybackState
}

func (p *mockPlayer) record(name string) {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.mu.Unlock()
}

func (p *mockPlayer) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connects++
	err := p.connectErr
	listener := p.listener
	initial := p.connectState
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if listener != nil {
		listener(domain.ReadyEvent{DeviceID: "device-1"})
		if initial != nil {
			listener(domain.StateChangedEvent{State: *initial})
		}
	}
	return nil
}

func (p *mockPlayer) Disconnect() {
	p.mu.Lock()
	p.disconnects++
	listener := p.listener
	p.mu.Unlock()
	if listener != nil {
		listener(domain.NotReadyEvent{DeviceID: "device-1"})
	}
}

func (p *mockPlayer) CurrentState(ctx context.Context) (domain.PlaybackState, error) {
	p.mu.Lock()
	blockState, err, state := p.blockState, p.stateErr, p.state
	p.mu.Unlock()
	if blockState {
		<-ctx.Done()
		return domain.PlaybackState{}, ctx.Err()
	}
	return state, err
}

func (p *mockPlayer) command(name string) error {
	p.record(name)
	p.mu.Lock()
	block, err := p.block, p.commandErr
	p.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (p *mockPlayer) TogglePlay(ctx context.Context) error { return p.command("toggle") }
func (p *mockPlayer) Resume(ctx context.Context) error     { return p.command("resume") }
func (p *mockPlayer) Next(ctx context.Context) error       { return p.command("next") }
func (p *mockPlayer) Previous(ctx context.Context) error   { return p.command("previous") }

func (p *mockPlayer) Seek(ctx context.Context, positionMs int) error {
	return p.command("seek")
}

func (p *mockPlayer) SetVolume(ctx context.Context, level float64) error {
	p.mu.Lock()
	p.volumes = append(p.volumes, level)
	p.mu.Unlock()
	return p.command("volume")
}

func (p *mockPlayer) SetShuffle(ctx context.Context, on bool) error {
	return p.command("shuffle")
}

func (p *mockPlayer) emit(ev domain.PlayerEvent) {
	p.mu.Lock()
	listener := p.listener
	p.mu.Unlock()
	listener(ev)
}

func (p *mockPlayer) set(fn func(p *mockPlayer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *mockPlayer) counts() (connects, disconnects int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects, p.disconnects
}

func (p *mockPlayer) callsOf(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == name {
			n++
		}
	}
	return n
}

type mockFactory struct {
	player *mockPlayer
	err    error
}

func (f *mockFactory) NewPlayer(token ports.TokenFunc, listener ports.EventListener) (ports.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.player.mu.Lock()
	f.player.tokenFn = token
	f.player.listener = listener
	f.player.mu.Unlock()
	return f.player, nil
}

type mockLyrics struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockLyrics) FetchLyrics(ctx context.Context, artist, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]string
	puts    int
}

func (m *mockCache) GetLyrics(ctx context.Context, trackID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.entries[trackID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *mockCache) PutLyrics(ctx context.Context, trackID string, lyrics string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]string{}
	}
	m.entries[trackID] = lyrics
	m.puts++
	return nil
}

type mockQueue struct {
	accept bool
	jobs   []ports.LyricsJob
}

func (q *mockQueue) Submit(job ports.LyricsJob) bool {
	q.jobs = append(q.jobs, job)
	return q.accept
}

func (p *mockPlayer) currentToken() string {
	p.mu.Lock()
	fn := p.tokenFn
	p.mu.Unlock()
	return fn()
}
