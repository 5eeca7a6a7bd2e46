package render_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/soocke/frameboost-go/domain/render"
	"github.com/soocke/frameboost-go/domain/render/rendertest"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newReady(t *testing.T) (*render.GraphicsContext, *rendertest.FakeDevice) {
	t.Helper()
	dev := rendertest.New()
	g := render.NewGraphicsContext(dev, 8, 8, discardLogger)
	if err := g.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if g.State() != render.StateReady {
		t.Fatalf("state %s after init", g.State())
	}
	return g, dev
}

func TestGraphicsContext_InitFailureStaysUninitialized(t *testing.T) {
	dev := rendertest.New()
	dev.Update(func(f *rendertest.Faults) { f.Program = rendertest.ErrInjected })
	g := render.NewGraphicsContext(dev, 8, 8, discardLogger)
	err := g.Init()
	if !errors.Is(err, rendertest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if g.State() != render.StateUninitialized {
		t.Fatalf("state %s, want uninitialized", g.State())
	}
	if dev.Releases() != 1 || dev.IsOpen() {
		t.Fatalf("partial init not released: releases=%d open=%v", dev.Releases(), dev.IsOpen())
	}
	if g.MakeCurrent() {
		t.Fatalf("make current must fail when not ready")
	}
	if _, err := g.CreateTexture(2, 2); !errors.Is(err, render.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestGraphicsContext_MakeCurrentFailureMarksLost(t *testing.T) {
	g, dev := newReady(t)
	dev.Update(func(f *rendertest.Faults) { f.MakeCurrent = rendertest.ErrInjected })
	if g.MakeCurrent() {
		t.Fatalf("make current should fail")
	}
	if g.State() != render.StateLost {
		t.Fatalf("state %s, want lost", g.State())
	}
	if g.Present() {
		t.Fatalf("present must fail when lost")
	}
}

func TestGraphicsContext_PresentFailureKeepsState(t *testing.T) {
	g, dev := newReady(t)
	dev.Update(func(f *rendertest.Faults) { f.Swap = rendertest.ErrInjected })
	if g.Present() {
		t.Fatalf("present should fail")
	}
	if g.State() != render.StateReady {
		t.Fatalf("present failure changed state to %s", g.State())
	}
}

func TestGraphicsContext_ProbeDetectsDeadSurface(t *testing.T) {
	g, dev := newReady(t)
	if !g.Probe() {
		t.Fatalf("probe should pass")
	}
	dev.Update(func(f *rendertest.Faults) { f.SurfaceDead = true })
	if g.Probe() {
		t.Fatalf("probe should fail")
	}
	if g.State() != render.StateLost {
		t.Fatalf("state %s, want lost", g.State())
	}
}

func TestGraphicsContext_FullRecoveryAfterLoss(t *testing.T) {
	g, dev := newReady(t)
	if _, err := g.CreateTexture(2, 2); err != nil {
		t.Fatalf("create texture: %v", err)
	}
	hooks := 0
	g.OnRecreated(func() { hooks++ })
	g.MarkLost()
	if err := g.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if g.State() != render.StateReady {
		t.Fatalf("state %s after recover", g.State())
	}
	if dev.Opens() != 2 {
		t.Fatalf("full recovery should reopen the display, opens=%d", dev.Opens())
	}
	if dev.LiveTextures() != 0 || g.TextureCount() != 0 {
		t.Fatalf("textures survived recovery: dev=%d ctx=%d", dev.LiveTextures(), g.TextureCount())
	}
	if hooks != 1 || g.Recoveries() != 1 {
		t.Fatalf("hooks=%d recoveries=%d", hooks, g.Recoveries())
	}
}

func TestGraphicsContext_PartialRecoveryKeepsDisplay(t *testing.T) {
	g, dev := newReady(t)
	id, _ := g.CreateTexture(2, 2)
	targets := dev.Targets()
	if err := g.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if dev.Opens() != 1 {
		t.Fatalf("partial recovery reopened display, opens=%d", dev.Opens())
	}
	if dev.Targets() != targets+1 {
		t.Fatalf("target not recreated")
	}
	if g.HasTexture(id) || dev.LiveTextures() != 0 {
		t.Fatalf("textures should be recreated on demand")
	}
}

func TestGraphicsContext_RecoverFailureThenSuccess(t *testing.T) {
	g, dev := newReady(t)
	dev.Update(func(f *rendertest.Faults) { f.Target = rendertest.ErrInjected })
	if err := g.Recover(); err == nil {
		t.Fatalf("recover should fail while target creation fails")
	}
	if g.State() != render.StateLost {
		t.Fatalf("state %s, want lost", g.State())
	}
	dev.Update(func(f *rendertest.Faults) { f.Target = nil })
	if err := g.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if g.State() != render.StateReady {
		t.Fatalf("state %s, want ready", g.State())
	}
}

func TestGraphicsContext_TerminateFailsFast(t *testing.T) {
	g, dev := newReady(t)
	for i := 0; i < 3; i++ {
		if _, err := g.CreateTexture(2, 2); err != nil {
			t.Fatalf("create texture: %v", err)
		}
	}
	g.Terminate()
	g.Terminate()
	if dev.LiveTextures() != 0 {
		t.Fatalf("terminate leaked %d textures", dev.LiveTextures())
	}
	if dev.IsOpen() {
		t.Fatalf("display still open")
	}
	if err := g.Init(); !errors.Is(err, render.ErrTerminated) {
		t.Fatalf("init after terminate: %v", err)
	}
	if _, err := g.CreateTexture(1, 1); !errors.Is(err, render.ErrTerminated) {
		t.Fatalf("create after terminate: %v", err)
	}
	if err := g.Recover(); !errors.Is(err, render.ErrTerminated) {
		t.Fatalf("recover after terminate: %v", err)
	}
	if g.MakeCurrent() || g.Present() {
		t.Fatalf("terminated context must not render")
	}
}

func TestGraphicsContext_Resize(t *testing.T) {
	g, dev := newReady(t)
	targets := dev.Targets()
	if err := g.Resize(16, 9); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if w, h := g.Size(); w != 16 || h != 9 {
		t.Fatalf("size %dx%d", w, h)
	}
	if dev.Targets() != targets+1 {
		t.Fatalf("target not recreated on resize")
	}
	if err := g.Resize(16, 9); err != nil || dev.Targets() != targets+1 {
		t.Fatalf("same size resize should be a no-op")
	}
}

func TestState_String(t *testing.T) {
	if render.StateRecovering.String() != "recovering" || render.State(99).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}
