package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/excitoon/LegendOfKyrandiaI-ru/pak"
)

var (
	extract bool
	outDir  string
)

func main() {
	cmd := &cobra.Command{
		Use:           "kyrapak <archive.PAK> [name...]",
		Short:         "List or extract entries of a PAK asset archive",
		Args:          cobra.MinimumNArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolVarP(&extract, "extract", "x", false, "extract entries instead of listing them")
	cmd.Flags().StringVarP(&outDir, "out", "C", ".", "directory to extract into")
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	archive, err := pak.Decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	wanted := func(string) bool { return true }
	if len(args) > 1 {
		names := make(map[string]bool, len(args)-1)
		for _, n := range args[1:] {
			names[n] = true
		}
		wanted = func(name string) bool { return names[name] }
	}

	for _, entry := range archive.Entries {
		if !wanted(entry.Name) {
			continue
		}
		if !extract {
			fmt.Printf("%8d  %s\n", len(entry.Data), entry.Name)
			continue
		}
		path := filepath.Join(outDir, entry.Name)
		if err := os.WriteFile(path, entry.Data, 0644); err != nil {
			return err
		}
		log.Infof("extracted %s (%d bytes)", path, len(entry.Data))
	}
	return nil
}
