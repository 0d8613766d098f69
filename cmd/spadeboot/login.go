package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/adapters/auth"
	"github.com/ewilliams-labs/spadeboot/internal/adapters/sqlite"
)

type loginParams struct {
	Config  string `short:"c" optional:"true" help:"Path to the TOML config file."`
	Timeout int    `optional:"true" help:"Seconds to wait for the browser callback." default:"300"`
}

func loginCmd() *cobra.Command {
	return boa.CmdT[loginParams]{
		Use:         "login",
		Short:       "Authorize with Spotify and store the session tokens",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *loginParams, cmd *cobra.Command, args []string) {
			if err := runLogin(cmd, params); err != nil {
				cmd.PrintErrln("login:", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runLogin(cmd *cobra.Command, params *loginParams) error {
	cfg, logger, err := loadConfig(params.Config)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return errors.New("spotify.client_id and spotify.client_secret are required for login")
	}

	store, err := sqlite.NewAdapter(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(params.Timeout)*time.Second)
	defer cancel()

	flow := auth.NewLoginFlow(authConfig(cfg), nil, logger)
	bundle, err := flow.Run(ctx, func(authURL string) {
		cmd.Println("Open this URL in your browser to authorize spadeboot:")
		cmd.Println(authURL)
	})
	if err != nil {
		return err
	}

	if err := store.SaveTokens(ctx, bundle); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	logger.Info("session stored", zap.Time("expires_at", bundle.ExpiresAt))
	cmd.Println("Logged in.")
	return nil
}
