// Package pipeline orchestrates one image through peak search, indexing,
// prediction and integration (spec.md 4.10's per-image sequence).
package pipeline

import (
	"time"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/indexing"
	"github.com/crystfel-go/crystfel-go/pkg/integration"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/prediction"
)

/*****************************************************************************************************************/

// StageTimings records wall-clock time spent in each stage of one image's
// processing, for the --time-stats style diagnostics the teacher's indexer
// prints per-job (SPEC_FULL.md's ambient observability supplement).
type StageTimings struct {
	PeakSearch  time.Duration
	Indexing    time.Duration
	Prediction  time.Duration
	Integration time.Duration
}

/*****************************************************************************************************************/

// Options configures one image's pass through the pipeline. Finder may be
// nil when img.Peaks is already populated (e.g. from an external peak
// list); Engine may be nil to skip indexing entirely (peak-search
// diagnostics only).
type Options struct {
	Finder peaksearch.Finder

	Engine     indexing.Engine
	Prior      *indexing.PriorCell
	IndexFlags indexing.Flags

	Prediction  prediction.Options
	Integration integration.Options
}

/*****************************************************************************************************************/

// Result is the outcome of processing one image.
type Result struct {
	Image   *detector.Image
	Timings StageTimings
	Err     error
}

/*****************************************************************************************************************/

// ProcessImage runs img through peak search (if configured), indexing,
// per-crystal prediction and integration, storing the resulting crystals on
// img.Crystals. It never returns a nil Result; partial progress before a
// failing stage is still attached to img and reported via Result.Err.
func ProcessImage(img *detector.Image, opts Options) Result {
	res := Result{Image: img}

	if opts.Finder != nil {
		t0 := time.Now()
		img.Peaks = nil
		for i := range img.Frames {
			img.Peaks = append(img.Peaks, opts.Finder.Find(&img.Frames[i])...)
		}
		res.Timings.PeakSearch = time.Since(t0)
	}

	if opts.Engine == nil {
		return res
	}

	t0 := time.Now()
	crystals, err := indexing.Index(opts.Engine, opts.Prior, img.Detector, img, opts.IndexFlags)
	res.Timings.Indexing = time.Since(t0)
	if err != nil {
		res.Err = err
		return res
	}
	img.Crystals = crystals
	img.IndexedBy = opts.Engine.Name()

	t0 = time.Now()
	for _, c := range crystals {
		if err := prediction.Predict(c, img, opts.Prediction); err != nil {
			res.Err = err
		}
	}
	res.Timings.Prediction = time.Since(t0)

	t0 = time.Now()
	for _, c := range crystals {
		integration.Integrate(c, img, opts.Integration)
	}
	res.Timings.Integration = time.Since(t0)

	return res
}
