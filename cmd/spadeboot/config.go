package main

import (
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/spadeboot/internal/config"
)

type configInitParams struct {
	Path  string `pos:"true" optional:"true" help:"Where to write the config file." default:"spadeboot.toml"`
	Force bool   `short:"f" optional:"true" help:"Overwrite an existing file."`
}

func configCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "config",
		Short: "Manage the spadeboot config file",
		SubCmds: []*cobra.Command{
			boa.CmdT[configInitParams]{
				Use:         "init",
				Short:       "Write a config file with every default filled in",
				ParamEnrich: paramEnricher(),
				RunFunc: func(params *configInitParams, cmd *cobra.Command, args []string) {
					if err := config.WriteDefault(params.Path, params.Force); err != nil {
						cmd.PrintErrln("config init:", err)
						os.Exit(1)
					}
					cmd.Println("wrote", params.Path)
				},
			}.ToCobra(),
		},
	}.ToCobra()
}
