package cli

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
)

/*****************************************************************************************************************/

// frameFileExt is the extension this CLI expects raw per-image pixel dumps
// to carry. No example in the retrieval pack ships an HDF5/CXI reader to
// ground against (SPEC_FULL.md section 3 drops that dependency outright),
// so --input takes a directory of these instead: for each panel in det's
// order, Height rows of Width little-endian float64 pixel values, packed
// back to back with no header. It is not a third-party format, just the
// minimal convention this command needs to exercise the rest of the
// pipeline against real-shaped pixel data.
const frameFileExt = ".frame"

/*****************************************************************************************************************/

// listFrameFiles returns the *.frame files under dir in a stable,
// deterministic order (lexical by filename), which becomes the per-run
// image processing order before worker.Pool assigns serial numbers.
func listFrameFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+frameFileExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("cli: no %s files found under %s", frameFileExt, dir)
	}
	return matches, nil
}

/*****************************************************************************************************************/

// loadFrames reads one raw pixel dump into one peaksearch.Frame per panel
// of det, in panel order.
func loadFrames(path string, det *detector.Detector) ([]peaksearch.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frames := make([]peaksearch.Frame, len(det.Panels))
	for i := range det.Panels {
		p := &det.Panels[i]

		pixels := make([][]float64, p.Height)
		for ss := 0; ss < p.Height; ss++ {
			row := make([]float64, p.Width)
			if err := binary.Read(f, binary.LittleEndian, row); err != nil {
				return nil, fmt.Errorf("cli: reading panel %s row %d of %s: %w", p.Name, ss, path, err)
			}
			pixels[ss] = row
		}

		frames[i] = peaksearch.Frame{
			Panel:  i,
			Width:  p.Width,
			Height: p.Height,
			Pixels: pixels,
			Bad:    p.Bad,
		}
	}
	return frames, nil
}

/*****************************************************************************************************************/
