package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/excitoon/LegendOfKyrandiaI-ru/compiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/decompiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

var verify bool

func main() {
	cmd := &cobra.Command{
		Use:           "kyraenc <input.kyra> [output.EMC]",
		Short:         "Compile Kyra source to an EMC2 conversation script",
		Args:          cobra.RangeArgs(1, 2),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "decompile and recompile the output and compare against the output bytes")
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := strings.TrimSuffix(input, ".kyra")
	if output == input {
		output = input + ".EMC"
	}
	if len(args) == 2 {
		output = args[1]
	}

	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	prog, err := compiler.Compile(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	raw, err := emc2.Encode(prog)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if verify {
		back, err := decompiler.Decompile(prog)
		if err != nil {
			return fmt.Errorf("%s: decompiling own output: %w", input, err)
		}
		rebuilt, err := compiler.CompileBytes(back)
		if err != nil {
			return fmt.Errorf("%s: recompiling decompiled output: %w", input, err)
		}
		if string(rebuilt) != string(raw) {
			return fmt.Errorf("%s: round trip mismatch", input)
		}
		log.Infof("%s: round trip verified (%d bytes)", input, len(raw))
	}

	if err := os.WriteFile(output, raw, 0644); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes)", output, len(raw))
	return nil
}
