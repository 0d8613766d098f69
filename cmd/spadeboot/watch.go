package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
	"github.com/ewilliams-labs/spadeboot/internal/core/services"
)

type watchParams struct {
	Config string `short:"c" optional:"true" help:"Path to the TOML config file."`
	Radius int    `short:"r" optional:"true" help:"Lines shown above and below the current one." default:"3"`
}

func watchCmd() *cobra.Command {
	return boa.CmdT[watchParams]{
		Use:         "watch",
		Short:       "Follow the current track's lyrics in the terminal",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *watchParams, cmd *cobra.Command, args []string) {
			if err := runWatch(params, os.Stdout); err != nil {
				cmd.PrintErrln("watch:", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

const clearScreen = "\033[H\033[2J"

func runWatch(params *watchParams, out io.Writer) error {
	cfg, logger, err := loadConfig(params.Config)
	if err != nil {
		return err
	}

	scrolls := make(chan services.ScrollCommand, 1)
	a, err := newApp(cfg, logger, func(cmd services.ScrollCommand) {
		// keep only the newest command when the renderer lags
		select {
		case scrolls <- cmd:
		default:
			select {
			case <-scrolls:
			default:
			}
			select {
			case scrolls <- cmd:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	defer a.close()
	a.start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, err := a.session.AcquireSession(ctx, nil)
	if !ok {
		return errors.Join(errors.New("no stored session, run `spadeboot login` first"), err)
	}
	if err := a.session.BootstrapPlayer(ctx); err != nil {
		return fmt.Errorf("player: %w", err)
	}

	w := &watcher{out: out, session: a.session, lyrics: a.lyrics, radius: params.Radius, center: domain.NoLine}
	return w.run(ctx, scrolls)
}

// watcher redraws on every scroll command and whenever the track or the
// lyrics status changes.
type watcher struct {
	out     io.Writer
	session *services.SessionManager
	lyrics  *services.LyricsSynchronizer
	radius  int

	center int
	key    string
}

func (w *watcher) run(ctx context.Context, scrolls <-chan services.ScrollCommand) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-scrolls:
			w.center = cmd.Index
			w.draw()
		case <-ticker.C:
			view := w.lyrics.View()
			key := fmt.Sprintf("%s|%s", view.TrackID, view.Status)
			if key != w.key {
				w.key = key
				w.center = view.Index
				w.draw()
			}
		}
	}
}

func (w *watcher) draw() {
	title := ""
	if track := w.session.Snapshot().Playback.Track; track != nil {
		title = strings.Join(lo.Compact([]string{track.PrimaryArtist(), track.Title}), " - ")
	}
	fmt.Fprint(w.out, clearScreen+renderWindow(w.lyrics.View(), title, w.center, w.radius)+"\n")
}
