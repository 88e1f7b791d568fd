package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystfel-go/crystfel-go/pkg/cellfile"
	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/geomfile"
	"github.com/crystfel-go/crystfel-go/pkg/indexing"
	"github.com/crystfel-go/crystfel-go/pkg/integration"
	"github.com/crystfel-go/crystfel-go/pkg/peaksearch"
	"github.com/crystfel-go/crystfel-go/pkg/pipeline"
	"github.com/crystfel-go/crystfel-go/pkg/prediction"
	"github.com/crystfel-go/crystfel-go/pkg/spectrum"
	"github.com/crystfel-go/crystfel-go/pkg/stream"

	"github.com/crystfel-go/crystfel-go/internal/worker"
)

/*****************************************************************************************************************/

var (
	ProcessGeometryFile     string
	ProcessCellFile         string
	ProcessInputDir         string
	ProcessOutputStream     string
	ProcessWavelength       float64
	ProcessBandwidth        float64
	ProcessPartialityModel  string
	ProcessNumWorkers       int
	ProcessHeartbeatSeconds float64

	ProcessPeakThreshold         float64
	ProcessPeakGradientThreshold float64
	ProcessPeakRadius            int
	ProcessPeakMinSNR            float64
	ProcessMinPeaksToIndex       int

	ProcessUseCellParameters bool
	ProcessRetry             bool
	ProcessMulti             bool

	ProcessQMax           float64
	ProcessMinPartiality  float64
	ProcessPolarisation   string
	ProcessPolarisationAx float64

	ProcessInnerRadius      float64
	ProcessMiddleRadius     float64
	ProcessOuterRadius      float64
	ProcessSaturationMargin float64
)

/*****************************************************************************************************************/

// ProcessCommand runs the full per-image pipeline (peak search, indexing,
// prediction, integration) over a directory of raw frames and writes a
// stream file, distributing images across a worker pool (spec.md 4.10/4.13).
var ProcessCommand = &cobra.Command{
	Use:   "process",
	Short: "process",
	Long:  "process indexes and integrates every image under --input and writes a stream file",
	Run: func(cmd *cobra.Command, args []string) {
		params, err := buildProcessParams()
		if err != nil {
			fmt.Println("failed to build process parameters:", err)
			cmd.Usage()
			return
		}

		if err := RunProcess(params); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	},
}

/*****************************************************************************************************************/

func init() {
	ProcessCommand.Flags().StringVarP(&ProcessGeometryFile, "geometry", "g", "", "Detector geometry file (CrystFEL-style .geom)")
	ProcessCommand.MarkFlagRequired("geometry")

	ProcessCommand.Flags().StringVarP(&ProcessCellFile, "cell", "c", "", "Prior unit cell file (CrystFEL v1.0 block or PDB CRYST1 line)")

	ProcessCommand.Flags().StringVarP(&ProcessInputDir, "input", "i", "", "Directory of raw per-image pixel dumps (*.frame)")
	ProcessCommand.MarkFlagRequired("input")

	ProcessCommand.Flags().StringVarP(&ProcessOutputStream, "output", "o", "", "Output stream file path")
	ProcessCommand.MarkFlagRequired("output")

	ProcessCommand.Flags().Float64VarP(&ProcessWavelength, "wavelength", "", 0, "Beam wavelength, metres")
	ProcessCommand.MarkFlagRequired("wavelength")
	ProcessCommand.Flags().Float64VarP(&ProcessBandwidth, "bandwidth", "", 0.01, "Relative beam bandwidth (only used by the xsphere partiality model)")
	ProcessCommand.Flags().StringVarP(&ProcessPartialityModel, "partiality-model", "", "unity", "Partiality model: unity, offset, xsphere or random")

	ProcessCommand.Flags().IntVarP(&ProcessNumWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent worker goroutines")
	ProcessCommand.Flags().Float64VarP(&ProcessHeartbeatSeconds, "heartbeat-timeout", "", 30, "Seconds of no progress before the watchdog logs a stalled worker")

	ProcessCommand.Flags().Float64VarP(&ProcessPeakThreshold, "peak-threshold", "", 100, "Gradient peak finder ADU threshold")
	ProcessCommand.Flags().Float64VarP(&ProcessPeakGradientThreshold, "peak-gradient-threshold", "", 1e5, "Gradient peak finder squared-gradient threshold")
	ProcessCommand.Flags().IntVarP(&ProcessPeakRadius, "peak-radius", "", 3, "Gradient peak finder centre-of-mass window radius, pixels")
	ProcessCommand.Flags().Float64VarP(&ProcessPeakMinSNR, "peak-min-snr", "", 5, "Gradient peak finder minimum local SNR")
	ProcessCommand.Flags().IntVarP(&ProcessMinPeaksToIndex, "min-peaks", "", 10, "Minimum peaks before the prior-cell engine accepts an image")

	ProcessCommand.Flags().BoolVarP(&ProcessUseCellParameters, "use-cell-parameters", "", true, "Constrain indexing to --cell's parameters (USE_CELL_PARAMETERS)")
	ProcessCommand.Flags().BoolVarP(&ProcessRetry, "retry", "", false, "Enable the RETRY indexing flag")
	ProcessCommand.Flags().BoolVarP(&ProcessMulti, "multi", "", false, "Enable the MULTI indexing flag")

	ProcessCommand.Flags().Float64VarP(&ProcessQMax, "q-max", "", 5e9, "Reciprocal-space search radius, metres^-1")
	ProcessCommand.Flags().Float64VarP(&ProcessMinPartiality, "min-partiality", "", 0, "Minimum partiality to keep a predicted reflection (0 = model default)")
	ProcessCommand.Flags().StringVarP(&ProcessPolarisation, "polarisation", "", "none", "Polarisation correction: none, horiz or vert")
	ProcessCommand.Flags().Float64VarP(&ProcessPolarisationAx, "polarisation-axis-angle", "", 0, "Polarisation reference plane angle, radians")

	ProcessCommand.Flags().Float64VarP(&ProcessInnerRadius, "integration-inner-radius", "", 3, "Ring-sum peak radius, pixels")
	ProcessCommand.Flags().Float64VarP(&ProcessMiddleRadius, "integration-middle-radius", "", 4, "Ring-sum background annulus inner radius, pixels")
	ProcessCommand.Flags().Float64VarP(&ProcessOuterRadius, "integration-outer-radius", "", 6, "Ring-sum background annulus outer radius, pixels")
	ProcessCommand.Flags().Float64VarP(&ProcessSaturationMargin, "saturation-margin", "", 0.05, "Fraction below a panel's max ADU at which a pixel counts as saturated")
}

/*****************************************************************************************************************/

// ProcessParams is RunProcess's input, built from the command's flags.
type ProcessParams struct {
	GeometryFile string
	CellFile     string
	InputDir     string
	OutputStream string

	Wavelength      float64
	Bandwidth       float64
	PartialityModel prediction.Model

	NumWorkers       int
	HeartbeatTimeout time.Duration

	Finder         peaksearch.GradientFinder
	MinPeaksToIndex int

	IndexFlags indexing.Flags

	Prediction  prediction.Options
	Integration integration.Options
}

/*****************************************************************************************************************/

func parsePartialityModel(s string) (prediction.Model, error) {
	switch s {
	case "unity":
		return prediction.Unity, nil
	case "offset":
		return prediction.Offset, nil
	case "xsphere":
		return prediction.XSphere, nil
	case "random":
		return prediction.Random, nil
	default:
		return prediction.Unity, fmt.Errorf("cli: unrecognised partiality model %q", s)
	}
}

/*****************************************************************************************************************/

func parsePolarisation(s string, axis float64) (prediction.PolarisationOptions, error) {
	switch s {
	case "", "none":
		return prediction.PolarisationOptions{}, nil
	case "horiz":
		return prediction.PolarisationOptions{Enabled: true, Degree: 1, AxisAngle: axis}, nil
	case "vert":
		return prediction.PolarisationOptions{Enabled: true, Degree: 1, AxisAngle: axis + math.Pi/2}, nil
	default:
		return prediction.PolarisationOptions{}, fmt.Errorf("cli: unrecognised polarisation %q", s)
	}
}

/*****************************************************************************************************************/

func buildProcessParams() (ProcessParams, error) {
	model, err := parsePartialityModel(ProcessPartialityModel)
	if err != nil {
		return ProcessParams{}, err
	}
	pol, err := parsePolarisation(ProcessPolarisation, ProcessPolarisationAx)
	if err != nil {
		return ProcessParams{}, err
	}

	var flags indexing.Flags
	if ProcessUseCellParameters {
		flags |= indexing.UseCellParameters
	}
	if ProcessRetry {
		flags |= indexing.Retry
	}
	if ProcessMulti {
		flags |= indexing.Multi
	}

	return ProcessParams{
		GeometryFile:    ProcessGeometryFile,
		CellFile:        ProcessCellFile,
		InputDir:        ProcessInputDir,
		OutputStream:    ProcessOutputStream,
		Wavelength:      ProcessWavelength,
		Bandwidth:       ProcessBandwidth,
		PartialityModel: model,

		NumWorkers:       ProcessNumWorkers,
		HeartbeatTimeout: time.Duration(ProcessHeartbeatSeconds * float64(time.Second)),

		Finder: peaksearch.GradientFinder{
			Threshold:         ProcessPeakThreshold,
			GradientThreshold: ProcessPeakGradientThreshold,
			Radius:            ProcessPeakRadius,
			MinSNR:            ProcessPeakMinSNR,
		},
		MinPeaksToIndex: ProcessMinPeaksToIndex,

		IndexFlags: flags,

		Prediction: prediction.Options{
			QMax:          ProcessQMax,
			Model:         model,
			MinPartiality: ProcessMinPartiality,
			Polarisation:  pol,
		},
		Integration: integration.Options{
			InnerRadius:      ProcessInnerRadius,
			MiddleRadius:     ProcessMiddleRadius,
			OuterRadius:      ProcessOuterRadius,
			SaturationMargin: ProcessSaturationMargin,
		},
	}, flagsAreConsistent(flags, ProcessCellFile)
}

/*****************************************************************************************************************/

func flagsAreConsistent(flags indexing.Flags, cellFile string) error {
	if flags&indexing.UseCellParameters != 0 && cellFile == "" {
		return fmt.Errorf("cli: --use-cell-parameters requires --cell")
	}
	return nil
}

/*****************************************************************************************************************/

// streamSink adapts a stream.Writer to worker.Sink; the pool already
// serialises calls to Write via its own mutex, so no locking is needed here.
type streamSink struct {
	w *stream.Writer
}

func (s *streamSink) Write(img *detector.Image, res pipeline.Result) error {
	return s.w.WriteImage(img)
}

/*****************************************************************************************************************/

// RunProcess loads the geometry and (optional) prior cell, globs the raw
// frame files under params.InputDir, and runs them through internal/worker's
// pool, writing each result to params.OutputStream as it completes.
func RunProcess(params ProcessParams) error {
	geomFile, err := os.Open(params.GeometryFile)
	if err != nil {
		return fmt.Errorf("cli: opening geometry file: %w", err)
	}
	defer geomFile.Close()

	det, err := geomfile.Parse(geomFile)
	if err != nil {
		return fmt.Errorf("cli: parsing geometry file: %w", err)
	}
	fmt.Printf("Geometry: %d panels\n", len(det.Panels))

	var prior *indexing.PriorCell
	if params.CellFile != "" {
		cellFile, err := os.Open(params.CellFile)
		if err != nil {
			return fmt.Errorf("cli: opening cell file: %w", err)
		}
		priorCell, err := cellfile.Parse(cellFile)
		cellFile.Close()
		if err != nil {
			return fmt.Errorf("cli: parsing cell file: %w", err)
		}
		prior = &indexing.PriorCell{
			Cell: priorCell,
			Tolerances: indexing.Tolerances{
				LengthPct: [3]float64{5, 5, 5},
				AngleRad:  0.02,
			},
		}
		a, b, c, _, _, _, _ := priorCell.Parameters()
		fmt.Printf("Prior cell: a=%.4gm b=%.4gm c=%.4gm\n", a, b, c)
	}

	paths, err := listFrameFiles(params.InputDir)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d frame files under %s\n", len(paths), params.InputDir)

	k := 1 / params.Wavelength
	var beamSpectrum *spectrum.Spectrum
	if params.PartialityModel == prediction.XSphere {
		beamSpectrum = spectrum.NewMonochromatic(k, k*params.Bandwidth)
	}

	images := make([]*detector.Image, 0, len(paths))
	for _, path := range paths {
		frames, err := loadFrames(path, det)
		if err != nil {
			return err
		}
		images = append(images, &detector.Image{
			Detector:   det,
			Frames:     frames,
			Wavelength: params.Wavelength,
			Spectrum:   beamSpectrum,
		})
	}

	out, err := os.Create(params.OutputStream)
	if err != nil {
		return fmt.Errorf("cli: creating output stream: %w", err)
	}
	defer out.Close()

	writer := stream.NewWriter(out)
	if err := writer.WriteHeader(stream.Header{
		GeometryFile: params.GeometryFile,
	}); err != nil {
		return fmt.Errorf("cli: writing stream header: %w", err)
	}

	pool := worker.NewPool(worker.Options{
		NumWorkers: params.NumWorkers,
		Pipeline: pipeline.Options{
			Finder:      params.Finder,
			Engine:      &indexing.PriorEngine{MinPeaks: params.MinPeaksToIndex},
			Prior:       prior,
			IndexFlags:  params.IndexFlags,
			Prediction:  params.Prediction,
			Integration: params.Integration,
		},
		HeartbeatTimeout: params.HeartbeatTimeout,
	})

	start := time.Now()
	err = pool.RunImages(context.Background(), images, &streamSink{w: writer})
	if err != nil {
		return fmt.Errorf("cli: worker pool failed: %w", err)
	}

	indexed := 0
	for _, img := range images {
		if len(img.Crystals) > 0 {
			indexed++
		}
	}
	fmt.Printf("Processed %d images (%d indexed) in %s\n", len(images), indexed, time.Since(start))
	fmt.Printf("Stream written to: %s\n", params.OutputStream)

	return nil
}

/*****************************************************************************************************************/
