package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/spadeboot/internal/adapters/rest"
)

type serveParams struct {
	Config string `short:"c" optional:"true" help:"Path to the TOML config file."`
	Addr   string `optional:"true" help:"Listen address, overrides server.addr."`
}

func serveCmd() *cobra.Command {
	return boa.CmdT[serveParams]{
		Use:         "serve",
		Short:       "Run the session manager and the HTTP API",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *serveParams, cmd *cobra.Command, args []string) {
			if err := runServe(cmd.Context(), params); err != nil {
				cmd.PrintErrln("serve:", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runServe(parent context.Context, params *serveParams) error {
	cfg, logger, err := loadConfig(params.Config)
	if err != nil {
		return err
	}
	if params.Addr != "" {
		cfg.Server.Addr = params.Addr
	}

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.close()
	a.start()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a stored session is picked up right away; otherwise POST /session
	if ok, err := a.session.AcquireSession(ctx, nil); ok {
		if err := a.session.BootstrapPlayer(ctx); err != nil {
			logger.Warn("player bootstrap failed", zap.Error(err))
		}
	} else if err != nil {
		logger.Warn("no stored session", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rest.NewHandler(a.session, a.lyrics, logger),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.Server.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	}
}
