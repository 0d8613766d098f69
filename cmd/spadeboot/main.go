// Command spadeboot runs the playback session manager and lyrics follower.
package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "spadeboot",
		Short:   "Spotify Connect session manager with synchronized lyrics",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			serveCmd(),
			loginCmd(),
			watchCmd(),
			configCmd(),
		},
	}.Run()
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "dev"
	}
	return bi.Main.Version
}

func paramEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}
