// Package cli wires the pkg/* components into a cobra command frontend,
// following the teacher's cmd/root.go + internal/<driver> split
// (spec.md's external interfaces, SPEC_FULL.md section 1).
package cli

import (
	"github.com/spf13/cobra"
)

/*****************************************************************************************************************/

var rootCommand = &cobra.Command{
	Use:   "crystfelgo",
	Short: "crystfelgo processes serial-crystallography diffraction images.",
	Long:  "crystfelgo indexes, integrates, scales and post-refines serial-crystallography diffraction images, and reads/writes the stream record text format.",
}

/*****************************************************************************************************************/

func init() {
	rootCommand.AddCommand(ProcessCommand)
	rootCommand.AddCommand(MergeCommand)
}

/*****************************************************************************************************************/

// Execute runs the root command, panicking on error exactly as the
// teacher's cmd/root.go does.
func Execute() {
	if err := rootCommand.Execute(); err != nil {
		panic(err)
	}
}

/*****************************************************************************************************************/
