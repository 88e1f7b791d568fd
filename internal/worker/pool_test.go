package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/pipeline"
)

/*****************************************************************************************************************/

type recordingSink struct {
	mu   sync.Mutex
	seen []uint64
}

func (s *recordingSink) Write(img *detector.Image, res pipeline.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, img.Serial)
	return nil
}

/*****************************************************************************************************************/

func TestRunImagesProcessesEveryImageExactlyOnce(t *testing.T) {
	images := make([]*detector.Image, 0, 10)
	for i := 0; i < 10; i++ {
		images = append(images, &detector.Image{})
	}

	pool := NewPool(Options{NumWorkers: 3})
	sink := &recordingSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.RunImages(ctx, images, sink); err != nil {
		t.Fatalf("RunImages: %v", err)
	}

	if len(sink.seen) != len(images) {
		t.Fatalf("sink recorded %d images; want %d", len(sink.seen), len(images))
	}

	unique := make(map[uint64]bool)
	for _, s := range sink.seen {
		if s == 0 {
			t.Error("image written with a zero serial")
		}
		unique[s] = true
	}
	if len(unique) != len(images) {
		t.Errorf("expected %d unique serials, got %d", len(images), len(unique))
	}
}

/*****************************************************************************************************************/

func TestTerminateStopsPoolWithoutDrainingAllJobs(t *testing.T) {
	jobs := make(chan Job)
	pool := NewPool(Options{NumWorkers: 2})
	sink := &recordingSink{}

	pool.Terminate()

	done := make(chan error, 1)
	go func() {
		done <- pool.Run(context.Background(), jobs, sink)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Terminate was called before any job was sent")
	}
}

/*****************************************************************************************************************/

func TestWatchdogReportsStalledWorkerWithoutPanicking(t *testing.T) {
	pool := NewPool(Options{
		NumWorkers:       1,
		HeartbeatTimeout: 10 * time.Millisecond,
		WatchdogInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pool.watch(ctx)
}
