package render

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/soocke/frameboost-go/domain/frame"
)

// UploadResult reports the texture a sample landed in.
type UploadResult struct {
	Seq     uint64
	Texture TextureID
	Cached  bool
	Err     error
}

// UploadStats counts uploader outcomes.
type UploadStats struct {
	Uploaded uint64
	Cached   uint64
	Busy     uint64
	Failed   uint64
}

type uploadJob struct {
	sample frame.Sample
	result chan UploadResult
}

// Uploader moves captured samples into textures. A worker goroutine takes
// jobs off a bounded channel and runs the device upload on the Owner; the
// producer never waits on either.
type Uploader struct {
	gctx     *GraphicsContext
	owner    *Owner
	pool     *TexturePool
	releaser frame.Releaser
	logger   *slog.Logger

	jobs     chan uploadJob
	mu       sync.RWMutex // guards stopping and the close of jobs
	stopping bool
	wg       sync.WaitGroup

	uploaded atomic.Uint64
	cached   atomic.Uint64
	busy     atomic.Uint64
	failed   atomic.Uint64
}

// NewUploader starts the upload worker. depth bounds queued jobs.
func NewUploader(gctx *GraphicsContext, owner *Owner, pool *TexturePool, releaser frame.Releaser, depth int, logger *slog.Logger) *Uploader {
	if depth <= 0 {
		depth = 8
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	u := &Uploader{
		gctx:     gctx,
		owner:    owner,
		pool:     pool,
		releaser: releaser,
		logger:   logger,
		jobs:     make(chan uploadJob, depth),
	}
	u.wg.Add(1)
	go u.worker()
	return u
}

// UploadAsync queues s for upload and returns immediately. The buffer is
// retained until the job finishes. A full queue yields ErrUploadBusy.
func (u *Uploader) UploadAsync(s frame.Sample) <-chan UploadResult {
	res := make(chan UploadResult, 1)
	if !s.Valid() {
		res <- UploadResult{Seq: s.Seq, Err: ErrBadSample}
		return res
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.stopping {
		res <- UploadResult{Seq: s.Seq, Err: ErrUploadClosed}
		return res
	}
	s.Buf.Retain()
	select {
	case u.jobs <- uploadJob{sample: s, result: res}:
	default:
		u.releaser.Release(s.Buf)
		u.busy.Add(1)
		res <- UploadResult{Seq: s.Seq, Err: ErrUploadBusy}
	}
	return res
}

func (u *Uploader) worker() {
	defer u.wg.Done()
	for job := range u.jobs {
		r := u.process(job.sample)
		u.releaser.Release(job.sample.Buf)
		job.result <- r
	}
}

func (u *Uploader) process(s frame.Sample) (r UploadResult) {
	r.Seq = s.Seq
	defer func() {
		if rec := recover(); rec != nil {
			u.logger.Error("upload panic", "seq", s.Seq, "panic", rec)
			r.Err = ErrContextLost
		}
		if r.Err != nil {
			u.failed.Add(1)
			u.logger.Debug("upload failed", "seq", s.Seq, "error", r.Err)
		}
	}()
	if id, ok := u.pool.Peek(s.Seq); ok {
		u.cached.Add(1)
		r.Texture, r.Cached = id, true
		return r
	}
	r.Err = u.owner.Do(func() error {
		id, cached, err := u.upload(s)
		r.Texture, r.Cached = id, cached
		return err
	})
	return r
}

// UploadNow returns the texture for s, uploading it if the pool misses. It
// must run on the Owner.
func (u *Uploader) UploadNow(s frame.Sample) (TextureID, error) {
	id, _, err := u.upload(s)
	return id, err
}

func (u *Uploader) upload(s frame.Sample) (TextureID, bool, error) {
	if id, ok := u.pool.Get(s.Seq); ok && u.gctx.HasTexture(id) {
		u.cached.Add(1)
		return id, true, nil
	}
	if !s.Valid() {
		return 0, false, ErrBadSample
	}
	id, err := u.gctx.CreateTexture(s.Width, s.Height)
	if err != nil {
		return 0, false, err
	}
	if err := u.gctx.WriteTexture(id, s.Pixels()); err != nil {
		u.gctx.DeleteTexture(id)
		return 0, false, err
	}
	u.pool.Add(s.Seq, id)
	u.uploaded.Add(1)
	return id, false, nil
}

// Stats returns upload counters.
func (u *Uploader) Stats() UploadStats {
	return UploadStats{
		Uploaded: u.uploaded.Load(),
		Cached:   u.cached.Load(),
		Busy:     u.busy.Load(),
		Failed:   u.failed.Load(),
	}
}

// Close stops accepting uploads, finishes queued jobs and waits for the
// worker. Queued jobs still run on the Owner, so close the Uploader first.
func (u *Uploader) Close() {
	u.mu.Lock()
	if !u.stopping {
		u.stopping = true
		close(u.jobs)
	}
	u.mu.Unlock()
	u.wg.Wait()
}
