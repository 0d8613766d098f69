package spotify

import (
	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// mapTrackToDomain converts a Web API track to a domain track.
func mapTrackToDomain(ft *spotify.FullTrack) domain.Track {
	coverURL := ""
	if len(ft.Album.Images) > 0 {
		coverURL = ft.Album.Images[0].URL
	}

	return domain.Track{
		ID:    string(ft.ID),
		Title: ft.Name,
		Artists: lo.Map(ft.Artists, func(a spotify.SimpleArtist, _ int) string {
			return a.Name
		}),
		Album:      ft.Album.Name,
		CoverURL:   coverURL,
		DurationMs: int(ft.Duration),
	}
}

// mapStateToDomain converts a player state. A state without an item means
// nothing is loaded on any device.
func mapStateToDomain(st *spotify.PlayerState) (domain.PlaybackState, error) {
	if st == nil || st.Item == nil {
		return domain.PlaybackState{}, domain.ErrNoActivePlayback
	}

	track := mapTrackToDomain(st.Item)
	return domain.PlaybackState{
		Track:      &track,
		PositionMs: int(st.Progress),
		DurationMs: track.DurationMs,
		Playing:    st.Playing,
		Shuffle:    st.ShuffleState,
		Volume:     int(st.Device.Volume),
		DeviceID:   string(st.Device.ID),
	}, nil
}

// pickDevice chooses the device to drive: by name when configured, else the
// active one, else the first listed.
func pickDevice(devices []spotify.PlayerDevice, name string) (spotify.PlayerDevice, bool) {
	if name != "" {
		return lo.Find(devices, func(d spotify.PlayerDevice) bool { return d.Name == name })
	}
	if active, ok := lo.Find(devices, func(d spotify.PlayerDevice) bool { return d.Active }); ok {
		return active, true
	}
	return lo.First(devices)
}
