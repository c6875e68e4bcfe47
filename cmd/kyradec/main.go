package main

import (
	"bytes"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/excitoon/LegendOfKyrandiaI-ru/compiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/decompiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

var verify bool

func main() {
	cmd := &cobra.Command{
		Use:           "kyradec <input.EMC> [output.kyra]",
		Short:         "Decompile an EMC2 conversation script to Kyra source",
		Args:          cobra.RangeArgs(1, 2),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "recompile the output and compare against the input bytes")
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := input + ".kyra"
	if len(args) == 2 {
		output = args[1]
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	prog, err := emc2.Decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	src, err := decompiler.Decompile(prog)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if verify {
		rebuilt, err := compiler.CompileBytes(src)
		if err != nil {
			return fmt.Errorf("%s: recompiling own output: %w", input, err)
		}
		if !bytes.Equal(rebuilt, raw) {
			return fmt.Errorf("%s: round trip mismatch: %d bytes in, %d bytes back", input, len(raw), len(rebuilt))
		}
		log.Infof("%s: round trip verified (%d bytes)", input, len(raw))
	}

	if err := os.WriteFile(output, []byte(src), 0644); err != nil {
		return err
	}
	log.Infof("wrote %s", output)
	return nil
}
