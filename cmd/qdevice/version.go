package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/seantiz/qdevice/internal/engine"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "device:  %s\n", engine.DeviceVersion)

		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(out, "qdevice: build info not available")
			return
		}
		fmt.Fprintf(out, "qdevice: %s\n", info.Main.Version)
		fmt.Fprintf(out, "go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(out, "commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(out, "date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(out, "dirty:   %s\n", s.Value)
			}
		}
	},
}
