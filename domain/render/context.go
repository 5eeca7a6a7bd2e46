package render

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// GraphicsContext owns one Device and drives its lifecycle state machine.
// Every context-affecting call holds a single mutex, so render, upload and
// recovery callers on different goroutines never use the device at once.
type GraphicsContext struct {
	mu       sync.Mutex
	dev      Device
	state    State
	width    int
	height   int
	textures map[TextureID]struct{}
	hooks    []func()
	logger   *slog.Logger

	recoveries atomic.Uint64
}

// NewGraphicsContext wraps dev. Nothing is allocated until Init.
func NewGraphicsContext(dev Device, width, height int, logger *slog.Logger) *GraphicsContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GraphicsContext{
		dev:      dev,
		width:    width,
		height:   height,
		textures: make(map[TextureID]struct{}),
		logger:   logger,
	}
}

// Init runs Uninitialized -> Ready. A failing step releases what was created
// and leaves the context Uninitialized.
func (g *GraphicsContext) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateTerminated:
		return ErrTerminated
	case StateReady:
		return nil
	}
	if err := g.initLocked(); err != nil {
		g.state = StateUninitialized
		g.logger.Error("graphics context init failed", "error", err)
		return err
	}
	g.setStateLocked(StateReady)
	return nil
}

func (g *GraphicsContext) initLocked() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"open display", g.dev.Open},
		{"create surface", func() error { return g.dev.CreateSurface(g.width, g.height) }},
		{"create context", g.dev.CreateContext},
		{"build program", g.dev.BuildProgram},
		{"create target", func() error { return g.dev.CreateTarget(g.width, g.height) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			g.teardownLocked()
			return fmt.Errorf("render: %s: %w", s.name, err)
		}
	}
	return nil
}

// teardownLocked deletes every tracked texture then releases the device.
func (g *GraphicsContext) teardownLocked() {
	g.deleteTexturesLocked()
	g.dev.Release()
}

func (g *GraphicsContext) deleteTexturesLocked() {
	for id := range g.textures {
		g.dev.DeleteTexture(id)
	}
	clear(g.textures)
}

func (g *GraphicsContext) setStateLocked(s State) {
	if g.state == s {
		return
	}
	g.logger.Debug("graphics context state", "from", g.state.String(), "to", s.String())
	g.state = s
}

func (g *GraphicsContext) requireReadyLocked() error {
	switch g.state {
	case StateReady:
		return nil
	case StateTerminated:
		return ErrTerminated
	default:
		return fmt.Errorf("%w: %s", ErrNotReady, g.state)
	}
}

// State returns the current lifecycle state.
func (g *GraphicsContext) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Size returns the off-screen target dimensions.
func (g *GraphicsContext) Size() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.width, g.height
}

// MakeCurrent binds the context for rendering. A device failure moves the
// context to Lost.
func (g *GraphicsContext) MakeCurrent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateReady {
		return false
	}
	if err := g.dev.MakeCurrent(); err != nil {
		g.logger.Warn("make current failed", "error", err)
		g.setStateLocked(StateLost)
		return false
	}
	return true
}

// Present swaps the target onto the surface. A failed swap leaves the state
// alone; the caller reports it to the recovery guard.
func (g *GraphicsContext) Present() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateReady {
		return false
	}
	if err := g.dev.Swap(); err != nil {
		g.logger.Debug("present failed", "error", err)
		return false
	}
	return true
}

// Probe checks surface liveness and moves a Ready context to Lost when the
// surface has gone away. It reports whether the context is usable.
func (g *GraphicsContext) Probe() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateReady {
		return false
	}
	if !g.dev.SurfaceAlive() {
		g.logger.Warn("surface probe failed")
		g.setStateLocked(StateLost)
		return false
	}
	return true
}

// MarkLost records an externally detected loss.
func (g *GraphicsContext) MarkLost() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateReady {
		g.setStateLocked(StateLost)
	}
}

// OnRecreated registers fn to run after every successful Recover, outside the
// context lock. Capture targets and texture caches bound to the old surface
// rebuild themselves here.
func (g *GraphicsContext) OnRecreated(fn func()) {
	g.mu.Lock()
	g.hooks = append(g.hooks, fn)
	g.mu.Unlock()
}

// Recover rebuilds the context. When the surface is still alive and the
// context was not marked Lost only textures and the target are recreated;
// otherwise the device is torn down and initialized from scratch.
func (g *GraphicsContext) Recover() error {
	g.mu.Lock()
	if g.state == StateTerminated {
		g.mu.Unlock()
		return ErrTerminated
	}
	partial := g.state == StateReady && g.dev.SurfaceAlive()
	g.setStateLocked(StateRecovering)

	var err error
	if partial {
		g.deleteTexturesLocked()
		g.dev.DestroyTarget()
		if err = g.dev.CreateTarget(g.width, g.height); err != nil {
			g.logger.Warn("partial recovery failed, rebuilding context", "error", err)
		}
	}
	if !partial || err != nil {
		partial = false
		g.teardownLocked()
		err = g.initLocked()
	}
	if err != nil {
		g.setStateLocked(StateLost)
		g.mu.Unlock()
		return err
	}
	g.setStateLocked(StateReady)
	n := g.recoveries.Add(1)
	hooks := slices.Clone(g.hooks)
	g.mu.Unlock()

	g.logger.Info("graphics context recovered", "partial", partial, "recoveries", n)
	for _, h := range hooks {
		h()
	}
	return nil
}

// Recoveries counts successful Recover calls.
func (g *GraphicsContext) Recoveries() uint64 { return g.recoveries.Load() }

// Terminate deletes every GPU object and releases the device. It is
// idempotent; all later calls fail with ErrTerminated.
func (g *GraphicsContext) Terminate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateTerminated {
		return
	}
	g.teardownLocked()
	g.setStateLocked(StateTerminated)
}

// Resize recreates the off-screen target at the new dimensions. Existing
// textures stay valid; they are scaled when drawn.
func (g *GraphicsContext) Resize(width, height int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if width == g.width && height == g.height {
		return nil
	}
	if err := g.requireReadyLocked(); err != nil {
		return err
	}
	g.dev.DestroyTarget()
	g.width, g.height = width, height
	if err := g.dev.CreateTarget(width, height); err != nil {
		g.setStateLocked(StateLost)
		return fmt.Errorf("render: resize target: %w", err)
	}
	g.logger.Info("render target resized", "width", width, "height", height)
	return nil
}

// CreateTexture allocates a width x height RGBA texture.
func (g *GraphicsContext) CreateTexture(width, height int) (TextureID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireReadyLocked(); err != nil {
		return 0, err
	}
	id, err := g.dev.CreateTexture(width, height)
	if err != nil {
		return 0, err
	}
	g.textures[id] = struct{}{}
	return id, nil
}

// WriteTexture uploads pix into texture id.
func (g *GraphicsContext) WriteTexture(id TextureID, pix []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireReadyLocked(); err != nil {
		return err
	}
	if _, ok := g.textures[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNoTexture, id)
	}
	return g.dev.WriteTexture(id, pix)
}

// DeleteTexture frees id if this context still tracks it. Unknown ids are
// ignored; a recovery may already have deleted them.
func (g *GraphicsContext) DeleteTexture(id TextureID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.textures[id]; !ok {
		return
	}
	g.dev.DeleteTexture(id)
	delete(g.textures, id)
}

// HasTexture reports whether id is tracked and live on the device.
func (g *GraphicsContext) HasTexture(id TextureID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.textures[id]
	return ok && g.dev.IsTexture(id)
}

// TextureCount returns the number of tracked textures.
func (g *GraphicsContext) TextureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.textures)
}

// Blend draws mix(prev, latest, factor) into the target.
func (g *GraphicsContext) Blend(prev, latest TextureID, factor float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireReadyLocked(); err != nil {
		return err
	}
	if err := g.dev.Blend(prev, latest, factor); err != nil {
		return fmt.Errorf("render: blend: %w", err)
	}
	return nil
}

// LogValue reports state and texture count for structured logs.
func (g *GraphicsContext) LogValue() slog.Value {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slog.GroupValue(
		slog.String("state", g.state.String()),
		slog.Int("textures", len(g.textures)),
		slog.Int("width", g.width),
		slog.Int("height", g.height),
		slog.Uint64("recoveries", g.recoveries.Load()),
	)
}
