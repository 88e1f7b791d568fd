// Package worker runs a fixed-size pool of goroutines that each pull one
// image at a time off a shared queue and push it through pkg/pipeline,
// coordinated through shared heartbeat counters and a termination flag
// (spec.md 4.13).
package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid"
	"golang.org/x/sync/errgroup"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/pipeline"
)

/*****************************************************************************************************************/

// Job is one unit of work handed to a worker: an image ready for peak
// search/indexing/prediction/integration.
type Job struct {
	Image *detector.Image
}

/*****************************************************************************************************************/

// Sink receives one image's finished Result. Write is called under the
// pool's single writer lock (spec.md 4.13's "exactly one lock: stream
// writer"), so implementations need not be internally synchronised.
type Sink interface {
	Write(img *detector.Image, res pipeline.Result) error
}

/*****************************************************************************************************************/

// Options configures a Pool.
type Options struct {
	// NumWorkers is the size of the fixed pool. Defaults to 1.
	NumWorkers int

	// Pipeline is passed unchanged to pipeline.ProcessImage for every job.
	Pipeline pipeline.Options

	// HeartbeatTimeout is how long a worker's heartbeat counter may stay
	// unchanged before the watchdog reports it as wedged. Zero disables
	// the watchdog.
	HeartbeatTimeout time.Duration

	// WatchdogInterval is how often the watchdog samples heartbeats.
	// Defaults to HeartbeatTimeout/4 when zero and HeartbeatTimeout > 0.
	WatchdogInterval time.Duration
}

/*****************************************************************************************************************/

// Pool is a fixed-size worker pool sharing one heartbeat region and one
// termination flag, the Go analogue of spec.md 4.13's shared-memory region
// (a goroutine pool has no separate address space to put it in, so the
// "region" is just these fields, single-writer-per-counter as specified).
type Pool struct {
	opts       Options
	heartbeats []atomic.Uint64
	terminated atomic.Bool
	writeMu    sync.Mutex
	serial     atomic.Uint64
}

/*****************************************************************************************************************/

// NewPool builds a Pool ready to run.
func NewPool(opts Options) *Pool {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.HeartbeatTimeout > 0 && opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = opts.HeartbeatTimeout / 4
	}
	return &Pool{
		opts:       opts,
		heartbeats: make([]atomic.Uint64, opts.NumWorkers),
	}
}

/*****************************************************************************************************************/

// Terminate sets the shared termination flag. Workers finish the image
// they're currently processing and then exit; Run returns once all of them
// have drained.
func (p *Pool) Terminate() { p.terminated.Store(true) }

/*****************************************************************************************************************/

// Run starts the pool against jobs and blocks until jobs is closed, ctx is
// cancelled, or Terminate is called and every worker has finished its
// current image. Sink.Write is invoked under a single shared lock so
// records are serialised one image at a time regardless of worker count.
//
// The watchdog runs outside the workers' errgroup and on its own context:
// errgroup.WithContext only cancels its derived context on the first worker
// error or once Wait returns, and Wait cannot return while the watchdog is
// still running on that same context. Folding the watchdog into the worker
// group would deadlock every successful run.
func (p *Pool) Run(ctx context.Context, jobs <-chan Job, sink Sink) error {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(workerCtx)
	for cookie := 0; cookie < p.opts.NumWorkers; cookie++ {
		cookie := cookie
		g.Go(func() error {
			return p.runWorker(gctx, cookie, jobs, sink)
		})
	}

	var watchDone chan struct{}
	if p.opts.WatchdogInterval > 0 {
		watchDone = make(chan struct{})
		go func() {
			defer close(watchDone)
			p.watch(workerCtx)
		}()
	}

	err := g.Wait()
	cancel()
	if watchDone != nil {
		<-watchDone
	}
	return err
}

/*****************************************************************************************************************/

// RunImages is a convenience wrapper over Run: it assigns each image a
// serial number if it doesn't already have one, feeds them to a fresh job
// queue from a producer goroutine, and runs the pool against it.
func (p *Pool) RunImages(ctx context.Context, images []*detector.Image, sink Sink) error {
	jobs := make(chan Job)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, img := range images {
			if img.Serial == 0 {
				img.Serial = p.serial.Add(1)
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- Job{Image: img}:
			}
		}
		return nil
	})

	g.Go(func() error {
		return p.Run(gctx, jobs, sink)
	})

	return g.Wait()
}

/*****************************************************************************************************************/

func (p *Pool) runWorker(ctx context.Context, cookie int, jobs <-chan Job, sink Sink) error {
	id := workerCookie(cookie)

	for {
		if p.terminated.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			p.heartbeats[cookie].Add(1)
			res := pipeline.ProcessImage(job.Image, p.opts.Pipeline)
			p.heartbeats[cookie].Add(1)

			if err := p.write(sink, job.Image, res); err != nil {
				log.Printf("worker %s: failed to write image %d: %v", id, job.Image.Serial, err)
			}
			if res.Err != nil {
				log.Printf("worker %s: image %d: %v", id, job.Image.Serial, res.Err)
			}
		}
	}
}

/*****************************************************************************************************************/

func (p *Pool) write(sink Sink, img *detector.Image, res pipeline.Result) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return sink.Write(img, res)
}

/*****************************************************************************************************************/

// watch polls every worker's heartbeat counter and logs any that have gone
// HeartbeatTimeout without advancing. A real process/thread pool can kill
// and replace a wedged worker outright; a goroutine blocked inside a
// computation has no safe preemption point in Go, so this only reports the
// stall rather than reclaiming it (see DESIGN.md).
func (p *Pool) watch(ctx context.Context) {
	last := make([]uint64, len(p.heartbeats))
	stalledSince := make([]time.Time, len(p.heartbeats))
	cookies := make([]ulid.ULID, len(p.heartbeats))
	for i := range cookies {
		cookies[i] = workerCookie(i)
	}

	ticker := time.NewTicker(p.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for i := range p.heartbeats {
				v := p.heartbeats[i].Load()
				if v != last[i] {
					last[i] = v
					stalledSince[i] = time.Time{}
					continue
				}
				if stalledSince[i].IsZero() {
					stalledSince[i] = now
					continue
				}
				if now.Sub(stalledSince[i]) >= p.opts.HeartbeatTimeout {
					log.Printf("worker %s: heartbeat stalled for %s", cookies[i], now.Sub(stalledSince[i]))
				}
			}
		}
	}
}

/*****************************************************************************************************************/

// workerCookie derives a short, stable, human-printable ULID for a worker
// index, used only in log lines (spec.md 6's "worker cookie" identifies a
// log line's origin; the heartbeat array itself stays indexed by the plain
// int cookie, since that's what single-writer-per-counter requires).
func workerCookie(index int) ulid.ULID {
	// nil entropy leaves the random half zeroed, so the same index always
	// yields the same ULID.
	return ulid.MustNew(ulid.Timestamp(time.Unix(int64(index), 0)), nil)
}

/*****************************************************************************************************************/
