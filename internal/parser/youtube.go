package parser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kkdai/youtube/v2"

	"trackbridge/internal/models"
)

// YouTubeClient is the subset of the kkdai client used here.
type YouTubeClient interface {
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
}

// ParseYouTube reads a playlist, falling back to a single video when url is
// not a playlist. A nil client uses the default kkdai client.
func ParseYouTube(ctx context.Context, client YouTubeClient, url string) ([]models.RawTrackRecord, string, error) {
	if client == nil {
		client = &youtube.Client{}
	}

	// 1. Try to parse as a playlist first
	playlist, err := client.GetPlaylistContext(ctx, url)
	if err == nil {
		records := make([]models.RawTrackRecord, 0, len(playlist.Videos))
		for _, entry := range playlist.Videos {
			records = append(records, videoRecord(entry.ID, entry.Title, entry.Author, entry.Duration))
		}
		return records, playlist.Title, nil
	}

	// 2. Fallback: Parse as a single video if playlist parsing fails
	video, verr := client.GetVideoContext(ctx, url)
	if verr != nil {
		return nil, "", fmt.Errorf("failed to parse YouTube URL: %w", verr)
	}
	rec := videoRecord(video.ID, video.Title, video.Author, video.Duration)
	return []models.RawTrackRecord{rec}, video.Title, nil
}

func videoRecord(id, rawTitle, channel string, d time.Duration) models.RawTrackRecord {
	artist, title := SplitVideoTitle(rawTitle, channel)
	rec := models.RawTrackRecord{
		KeyTitle:     title,
		KeyArtist:    artist,
		KeySourceURI: "https://www.youtube.com/watch?v=" + id,
	}
	if d > 0 {
		rec[KeyDuration] = strconv.Itoa(int(d.Round(time.Second) / time.Second))
	}
	return rec
}
