package pipeline

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/domain/render"
	"github.com/soocke/frameboost-go/domain/render/rendertest"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// devices hands out FakeDevices and remembers them for later assertions.
type devices struct {
	mu    sync.Mutex
	all   []*rendertest.FakeDevice
	setup func(*rendertest.Faults)
}

func (d *devices) factory() render.Device {
	dev := rendertest.New()
	if d.setup != nil {
		dev.Update(d.setup)
	}
	d.mu.Lock()
	d.all = append(d.all, dev)
	d.mu.Unlock()
	return dev
}

func (d *devices) last() *rendertest.FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.all[len(d.all)-1]
}

type manualClock struct{ now atomic.Int64 }

func (c *manualClock) read() int64             { return c.now.Load() }
func (c *manualClock) advance(d time.Duration) { c.now.Add(int64(d)) }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.FrameWidth, cfg.FrameHeight = 4, 4
	cfg.QueueCapacity = 4
	return cfg
}

func pixels(w, h int) []byte { return make([]byte, w*h*4) }

func waitFor(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func noSleep(time.Duration) {}

func TestPipeline_RendersQueuedFrames(t *testing.T) {
	devs := &devices{}
	clk := &manualClock{}
	clk.advance(time.Second)
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory, Clock: clk.read})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pix := pixels(4, 4)
	if !p.OnFrameAvailable(pix, 4, 4) {
		t.Fatalf("first frame dropped")
	}
	clk.advance(10 * time.Millisecond)
	p.OnFrameAvailable(pix, 4, 4)
	clk.advance(16 * time.Millisecond)
	p.OnRefreshTick(clk.read())

	dev := devs.last()
	if dev.Blends() != 1 || dev.Swaps() != 1 {
		t.Fatalf("blends=%d swaps=%d", dev.Blends(), dev.Swaps())
	}
	st := p.Stats()
	if !st.Running || st.Queue != 2 || st.Pacing.InterpolatedFrames != 1 || st.Pacing.OriginalFrames != 2 {
		t.Fatalf("stats %+v", st)
	}
	if st.RunID == "" || st.Context != render.StateReady {
		t.Fatalf("run id %q context %s", st.RunID, st.Context)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if dev.LiveTextures() != 0 || dev.IsOpen() {
		t.Fatalf("teardown left textures=%d open=%v", dev.LiveTextures(), dev.IsOpen())
	}
	if ps := p.Pool().Stats(); ps.Outstanding != 0 {
		t.Fatalf("buffers outstanding after stop: %+v", ps)
	}
	if p.OnFrameAvailable(pix, 4, 4) {
		t.Fatalf("frame accepted after stop")
	}
}

func TestPipeline_RepeatedStartStopReturnsToBaseline(t *testing.T) {
	devs := &devices{}
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory, Sleep: noSleep})
	pix := pixels(4, 4)
	const cycles = 100
	for i := 0; i < cycles; i++ {
		if err := p.Start(); err != nil {
			t.Fatalf("cycle %d start: %v", i, err)
		}
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p.OnFrameAvailable(pix, 4, 4)
				time.Sleep(50 * time.Microsecond)
			}
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p.OnRefreshTick(p.Now())
			}
		}()
		time.Sleep(2 * time.Millisecond)
		if err := p.Stop(); err != nil {
			t.Fatalf("cycle %d stop: %v", i, err)
		}
		close(stop)
		wg.Wait()
	}

	if ps := p.Pool().Stats(); ps.Outstanding != 0 {
		t.Fatalf("buffers outstanding after %d cycles: %+v", cycles, ps)
	}
	if len(devs.all) != cycles {
		t.Fatalf("created %d devices, want %d", len(devs.all), cycles)
	}
	for i, dev := range devs.all {
		if dev.LiveTextures() != 0 || dev.IsOpen() {
			t.Fatalf("cycle %d leaked textures=%d open=%v", i, dev.LiveTextures(), dev.IsOpen())
		}
	}
}

func TestPipeline_StartStopErrors(t *testing.T) {
	devs := &devices{}
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory})
	if err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("stop before start: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(devs.all) != 1 {
		t.Fatalf("rejected start created a device")
	}
}

func TestPipeline_InitFailureIsFatal(t *testing.T) {
	devs := &devices{setup: func(f *rendertest.Faults) { f.Surface = rendertest.ErrInjected }}
	var reasons []string
	p := New(testConfig(), discardLogger, Callbacks{
		OnFatalFailure: func(reason string) { reasons = append(reasons, reason) },
	}, Options{DeviceFactory: devs.factory})
	err := p.Start()
	if !errors.Is(err, rendertest.ErrInjected) {
		t.Fatalf("start error %v", err)
	}
	if p.Running() || len(reasons) != 1 {
		t.Fatalf("running=%v reasons=%v", p.Running(), reasons)
	}
	if dev := devs.last(); dev.Releases() != 1 || dev.IsOpen() {
		t.Fatalf("failed init not released")
	}
}

func TestPipeline_RecoveryExhaustionStopsPipeline(t *testing.T) {
	devs := &devices{}
	clk := &manualClock{}
	fatal := make(chan string, 4)
	p := New(testConfig(), discardLogger, Callbacks{
		OnFatalFailure: func(reason string) { fatal <- reason },
	}, Options{DeviceFactory: devs.factory, Clock: clk.read, Sleep: noSleep})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	clk.advance(time.Millisecond)
	p.OnFrameAvailable(pix, 4, 4)

	dev := devs.last()
	dev.Update(func(f *rendertest.Faults) {
		f.Blend = rendertest.ErrInjected
		f.Target = rendertest.ErrInjected
	})
	for i := 0; i < 4; i++ {
		clk.advance(16 * time.Millisecond)
		p.OnRefreshTick(clk.read())
	}
	select {
	case <-fatal:
	case <-time.After(2 * time.Second):
		t.Fatalf("fatal failure not reported")
	}
	waitFor(t, func() bool { return !p.Running() }, time.Second)
	if dev.LiveTextures() != 0 || dev.IsOpen() {
		t.Fatalf("fatal teardown left textures=%d open=%v", dev.LiveTextures(), dev.IsOpen())
	}
	if ps := p.Pool().Stats(); ps.Outstanding != 0 {
		t.Fatalf("buffers outstanding: %+v", ps)
	}
	select {
	case r := <-fatal:
		t.Fatalf("fatal reported twice: %s", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPipeline_RecoversAfterConsecutiveFailures(t *testing.T) {
	devs := &devices{}
	clk := &manualClock{}
	var recovered atomic.Int32
	p := New(testConfig(), discardLogger, Callbacks{
		OnRecovered: func() { recovered.Add(1) },
	}, Options{DeviceFactory: devs.factory, Clock: clk.read, Sleep: noSleep})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	clk.advance(time.Millisecond)
	p.OnFrameAvailable(pix, 4, 4)

	dev := devs.last()
	dev.Update(func(f *rendertest.Faults) { f.Blend = rendertest.ErrInjected })
	for i := 0; i < 4; i++ {
		clk.advance(16 * time.Millisecond)
		p.OnRefreshTick(clk.read())
	}
	if recovered.Load() != 1 {
		t.Fatalf("recovered %d times, want 1", recovered.Load())
	}
	dev.Update(func(f *rendertest.Faults) { f.Blend = nil })
	clk.advance(16 * time.Millisecond)
	p.OnRefreshTick(clk.read())
	if dev.Blends() != 1 || !p.Running() || p.Stats().Context != render.StateReady {
		t.Fatalf("blends=%d running=%v context=%s", dev.Blends(), p.Running(), p.Stats().Context)
	}
}

func TestPipeline_ResizesTargetOnDimensionChange(t *testing.T) {
	devs := &devices{}
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	dev := devs.last()
	before := dev.Targets()
	p.OnFrameAvailable(pixels(4, 4), 4, 4)
	p.OnFrameAvailable(pixels(8, 2), 8, 2)
	waitFor(t, func() bool { return dev.Targets() == before+1 }, time.Second)
	if p.OnFrameAvailable(pixels(2, 2), 4, 4) {
		t.Fatalf("short pixel slice accepted")
	}
}

func TestPipeline_RefreshRateChangeRecomputesTarget(t *testing.T) {
	devs := &devices{}
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := p.Stats().Target; got != 75 {
		t.Fatalf("60Hz target %d", got)
	}
	p.OnRefreshRateChanged(120)
	if got := p.Stats().Target; got != 144 {
		t.Fatalf("120Hz target %d", got)
	}
	_ = p.Stop()
	if err := p.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer p.Stop()
	if got := p.Stats().Target; got != 144 {
		t.Fatalf("refresh rate not kept across runs, target %d", got)
	}
}

func TestPipeline_TelemetryCallback(t *testing.T) {
	devs := &devices{}
	var mu sync.Mutex
	var orig, interp float64
	got := make(chan struct{}, 1)
	p := New(testConfig(), discardLogger, Callbacks{
		OnTelemetry: func(o, i float64) {
			mu.Lock()
			orig, interp = o, i
			mu.Unlock()
			select {
			case got <- struct{}{}:
			default:
			}
		},
	}, Options{DeviceFactory: devs.factory})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	pix := pixels(4, 4)
	deadline := time.After(3 * time.Second)
	for {
		p.OnFrameAvailable(pix, 4, 4)
		p.OnRefreshTick(p.Now())
		select {
		case <-got:
			mu.Lock()
			defer mu.Unlock()
			if orig <= 0 || interp <= 0 {
				t.Fatalf("telemetry orig=%v interp=%v", orig, interp)
			}
			return
		case <-deadline:
			t.Fatalf("no telemetry within 3s")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPipeline_PresentsThroughGGDevice(t *testing.T) {
	presented := make(chan image.Rectangle, 1)
	p := New(testConfig(), discardLogger, Callbacks{
		OnPresent: func(img image.Image) {
			select {
			case presented <- img.Bounds():
			default:
			}
		},
	}, Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	p.OnRefreshTick(p.Now())
	select {
	case b := <-presented:
		if b.Dx() != 4 || b.Dy() != 4 {
			t.Fatalf("presented %v", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("nothing presented")
	}
}

func TestPipeline_TickerDrivesRendering(t *testing.T) {
	devs := &devices{}
	p := New(testConfig(), discardLogger, Callbacks{}, Options{
		DeviceFactory: devs.factory,
		Refresh:       TickerFactory(discardLogger),
	})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	dev := devs.last()
	waitFor(t, func() bool { return dev.Swaps() >= 2 }, 2*time.Second)
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	n := dev.Swaps()
	time.Sleep(50 * time.Millisecond)
	if dev.Swaps() != n {
		t.Fatalf("ticks rendered after stop")
	}
}

func TestPipeline_FrameDeliveryDoesNotWaitForTick(t *testing.T) {
	devs := &devices{}
	clk := &manualClock{}
	clk.advance(time.Second)
	p := New(testConfig(), discardLogger, Callbacks{}, Options{DeviceFactory: devs.factory, Clock: clk.read, Sleep: noSleep})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	clk.advance(time.Millisecond)
	p.OnFrameAvailable(pix, 4, 4)

	dev := devs.last()
	gate := make(chan struct{})
	dev.Update(func(f *rendertest.Faults) { f.BlendGate = gate })
	clk.advance(16 * time.Millisecond)
	ticked := make(chan struct{})
	go func() {
		defer close(ticked)
		p.OnRefreshTick(clk.read())
	}()
	waitFor(t, func() bool { return dev.Gated() == 1 }, time.Second)

	accepted := make(chan bool, 1)
	go func() { accepted <- p.OnFrameAvailable(pix, 4, 4) }()
	select {
	case ok := <-accepted:
		if !ok {
			t.Fatalf("frame dropped while a tick was rendering")
		}
	case <-time.After(500 * time.Millisecond):
		close(gate)
		t.Fatalf("OnFrameAvailable waited for the refresh tick")
	}
	close(gate)
	<-ticked

	if st := p.Stats(); st.Pacing.OriginalFrames != 3 || st.Pacing.InterpolatedFrames != 1 {
		t.Fatalf("pacing %+v", st.Pacing)
	}
}

func TestPipeline_RecoversAfterSurfaceLoss(t *testing.T) {
	devs := &devices{}
	clk := &manualClock{}
	var recovered atomic.Int32
	p := New(testConfig(), discardLogger, Callbacks{
		OnRecovered: func() { recovered.Add(1) },
	}, Options{DeviceFactory: devs.factory, Clock: clk.read, Sleep: noSleep})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()
	pix := pixels(4, 4)
	p.OnFrameAvailable(pix, 4, 4)
	clk.advance(time.Millisecond)
	p.OnFrameAvailable(pix, 4, 4)

	dev := devs.last()
	dev.Update(func(f *rendertest.Faults) { f.SurfaceDead = true })
	// The probe marks the context lost; every tick after that is a skip.
	for i := 0; i < 15; i++ {
		clk.advance(16 * time.Millisecond)
		p.OnRefreshTick(clk.read())
	}
	if recovered.Load() != 0 || p.Stats().Context != render.StateLost {
		t.Fatalf("recovered=%d context=%s before skip threshold", recovered.Load(), p.Stats().Context)
	}
	if dev.Blends() != 0 {
		t.Fatalf("rendered %d frames on a lost context", dev.Blends())
	}

	dev.Update(func(f *rendertest.Faults) { f.SurfaceDead = false })
	clk.advance(16 * time.Millisecond)
	p.OnRefreshTick(clk.read())
	if recovered.Load() != 1 || p.Stats().Context != render.StateReady {
		t.Fatalf("recovered=%d context=%s after skip threshold", recovered.Load(), p.Stats().Context)
	}
	if dev.Releases() != 1 {
		t.Fatalf("surface loss should rebuild the device, releases=%d", dev.Releases())
	}

	clk.advance(16 * time.Millisecond)
	p.OnRefreshTick(clk.read())
	if dev.Blends() != 1 || !p.Running() {
		t.Fatalf("blends=%d running=%v after recovery", dev.Blends(), p.Running())
	}
}
