package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystfel-go/crystfel-go/pkg/detector"
	"github.com/crystfel-go/crystfel-go/pkg/postrefine"
	"github.com/crystfel-go/crystfel-go/pkg/scaling"
	"github.com/crystfel-go/crystfel-go/pkg/store"
	"github.com/crystfel-go/crystfel-go/pkg/stream"
)

/*****************************************************************************************************************/

var (
	MergeInputStream  string
	MergeOutputStream string
	MergeStoreFile    string

	MergeBootstrapIterations int
	MergeMinReflections      int
	MergeMaxB                float64

	MergeRefine           bool
	MergeRefineRounds     int
	MergeRefineIterations int
	MergeBigShiftDeg      float64
)

/*****************************************************************************************************************/

// MergeCommand reads an indexed stream file, bootstraps a merged reference
// intensity list, fits each crystal's scale against it and (optionally)
// alternates with Nelder-Mead post-refinement, then writes the refined
// crystals back out (spec.md 4.11/4.12).
var MergeCommand = &cobra.Command{
	Use:   "merge",
	Short: "merge",
	Long:  "merge scales and optionally post-refines every crystal in a stream file against a bootstrapped merged reference",
	Run: func(cmd *cobra.Command, args []string) {
		params := MergeParams{
			InputStream:  MergeInputStream,
			OutputStream: MergeOutputStream,
			StoreFile:    MergeStoreFile,
			Scaling: scaling.Options{
				MinReflections:      MergeMinReflections,
				MaxB:                MergeMaxB,
				BootstrapIterations: MergeBootstrapIterations,
			},
			Refine:       MergeRefine,
			RefineRounds: MergeRefineRounds,
			Postrefine: postrefine.Options{
				MaxIterations: MergeRefineIterations,
				BigShiftDeg:   MergeBigShiftDeg,
			},
		}

		if err := RunMerge(params); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	},
}

/*****************************************************************************************************************/

func init() {
	MergeCommand.Flags().StringVarP(&MergeInputStream, "input", "i", "", "Input stream file (from 'process')")
	MergeCommand.MarkFlagRequired("input")

	MergeCommand.Flags().StringVarP(&MergeOutputStream, "output", "o", "", "Output stream file with scaled/refined crystals")
	MergeCommand.MarkFlagRequired("output")

	MergeCommand.Flags().StringVarP(&MergeStoreFile, "store", "", "", "Optional SQLite database recording the merged reference and refinement audit trail")

	MergeCommand.Flags().IntVarP(&MergeBootstrapIterations, "bootstrap-iterations", "", 3, "Merge/refit rounds for the scaling bootstrap")
	MergeCommand.Flags().IntVarP(&MergeMinReflections, "min-reflections", "", 5, "Minimum shared reflections to fit a crystal's scale")
	MergeCommand.Flags().Float64VarP(&MergeMaxB, "max-b", "", 1e-18, "Plausible Debye-Waller factor bound, metres^2")

	MergeCommand.Flags().BoolVarP(&MergeRefine, "refine", "", false, "Alternate scaling with Nelder-Mead post-refinement")
	MergeCommand.Flags().IntVarP(&MergeRefineRounds, "refine-rounds", "", 3, "Scale/refine alternation rounds when --refine is set")
	MergeCommand.Flags().IntVarP(&MergeRefineIterations, "refine-iterations", "", 0, "Nelder-Mead major iterations per crystal (0 = gonum default)")
	MergeCommand.Flags().Float64VarP(&MergeBigShiftDeg, "big-shift-deg", "", 5, "Reject a refinement whose cumulative orientation shift exceeds this, degrees")
}

/*****************************************************************************************************************/

// MergeParams is RunMerge's input, built from the command's flags.
type MergeParams struct {
	InputStream  string
	OutputStream string
	StoreFile    string

	Scaling scaling.Options

	Refine       bool
	RefineRounds int
	Postrefine   postrefine.Options
}

/*****************************************************************************************************************/

// crystalRef pairs one crystal with the image it belongs to and a stable
// id for audit logging, since detector.Crystal deliberately carries no
// back-reference to its image (pkg/detector's no-cycles design note).
type crystalRef struct {
	image     *detector.Image
	crystal   *detector.Crystal
	crystalID string
}

/*****************************************************************************************************************/

func readAllImages(path string) ([]*detector.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := stream.NewReader(f)
	if _, err := r.ReadHeader(); err != nil && err != io.EOF {
		return nil, err
	}

	var images []*detector.Image
	for {
		img, err := r.ReadImage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

/*****************************************************************************************************************/

// RunMerge reads params.InputStream, bootstraps a merged reference over
// every crystal found, fits each crystal's G/B against it, optionally
// alternates with post-refinement, and writes the result to
// params.OutputStream.
func RunMerge(params MergeParams) error {
	images, err := readAllImages(params.InputStream)
	if err != nil {
		return fmt.Errorf("cli: reading input stream: %w", err)
	}

	var refs []crystalRef
	var crystals []*detector.Crystal
	for _, img := range images {
		for i, c := range img.Crystals {
			refs = append(refs, crystalRef{
				image:     img,
				crystal:   c,
				crystalID: fmt.Sprintf("%d-%d", img.Serial, i),
			})
			crystals = append(crystals, c)
		}
	}
	fmt.Printf("Loaded %d images, %d crystals\n", len(images), len(crystals))
	if len(crystals) == 0 {
		return fmt.Errorf("cli: no crystals found in %s", params.InputStream)
	}

	var st *store.Store
	if params.StoreFile != "" {
		st, err = store.Open(params.StoreFile)
		if err != nil {
			return fmt.Errorf("cli: opening store: %w", err)
		}
		defer st.Close()
	}

	ref := scaling.DirectScale(crystals, params.Scaling)
	fmt.Printf("Bootstrapped merged reference: %d reflections\n", ref.Len())
	if st != nil {
		if err := recordRound(st, refs, 0); err != nil {
			return err
		}
	}

	if params.Refine {
		rounds := params.RefineRounds
		if rounds <= 0 {
			rounds = 1
		}
		for round := 1; round <= rounds; round++ {
			refined := 0
			for _, cr := range refs {
				if err := postrefine.Refine(cr.crystal, cr.image, params.Postrefine, nil); err == nil {
					refined++
				}
			}
			ref = scaling.DirectScale(crystals, params.Scaling)
			fmt.Printf("Round %d: refined %d/%d crystals, reference now %d reflections\n", round, refined, len(refs), ref.Len())
			if st != nil {
				if err := recordRound(st, refs, round); err != nil {
					return err
				}
			}
		}
	}

	if st != nil {
		if err := st.SaveMergedReference(ref); err != nil {
			return fmt.Errorf("cli: saving merged reference: %w", err)
		}
	}

	out, err := os.Create(params.OutputStream)
	if err != nil {
		return fmt.Errorf("cli: creating output stream: %w", err)
	}
	defer out.Close()

	writer := stream.NewWriter(out)
	if err := writer.WriteHeader(stream.Header{}); err != nil {
		return err
	}
	for _, img := range images {
		if err := writer.WriteImage(img); err != nil {
			return fmt.Errorf("cli: writing output stream: %w", err)
		}
	}

	fmt.Printf("Stream written to: %s\n", params.OutputStream)
	return nil
}

/*****************************************************************************************************************/

func recordRound(st *store.Store, refs []crystalRef, round int) error {
	for _, cr := range refs {
		if err := st.RecordRefinement(cr.crystalID, round, cr.crystal); err != nil {
			return fmt.Errorf("cli: recording refinement audit: %w", err)
		}
	}
	return nil
}

/*****************************************************************************************************************/
