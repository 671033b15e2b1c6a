package main

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

const mpdRetryDelay = 5 * time.Second

// runMPDWatcher follows the player subsystem of the local MPD (moOde's
// player) and reports the current song as now-playing details. MPD being
// down is not fatal: the watcher reconnects until ctx is canceled.
func runMPDWatcher(ctx context.Context, cfg *MPDConfig, np *nowPlayingTracker, events chan<- Event, logger *slog.Logger) error {
	for {
		err := watchMPDOnce(ctx, cfg, np, events, logger)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("mpd watcher stopped; retrying", "error", err, "in", mpdRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(mpdRetryDelay):
		}
	}
}

func watchMPDOnce(ctx context.Context, cfg *MPDConfig, np *nowPlayingTracker, events chan<- Event, logger *slog.Logger) error {
	client, err := mpd.DialAuthenticated("tcp", cfg.Address, cfg.Password)
	if err != nil {
		return fmt.Errorf("mpd dial %s: %w", cfg.Address, err)
	}
	defer client.Close()

	w, err := mpd.NewWatcher("tcp", cfg.Address, cfg.Password, "player")
	if err != nil {
		return fmt.Errorf("mpd watcher %s: %w", cfg.Address, err)
	}
	defer w.Close()
	logger.Info("watching mpd", "address", cfg.Address)

	report := func() error {
		song, err := client.CurrentSong()
		if err != nil {
			return fmt.Errorf("mpd currentsong: %w", err)
		}
		trySend(events, NowPlayingChanged{NowPlaying: np.SetDetails(songDetails(song))}, logger)
		return nil
	}
	if err := report(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Event:
			if !ok {
				return fmt.Errorf("mpd watcher closed")
			}
			if err := report(); err != nil {
				return err
			}
		case err := <-w.Error:
			return err
		}
	}
}

// songDetails formats a currentsong reply as one display line.
func songDetails(song map[string]string) string {
	artist, title := song["Artist"], song["Title"]
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	case song["Name"] != "":
		return song["Name"]
	case song["file"] != "":
		return path.Base(song["file"])
	}
	return ""
}
