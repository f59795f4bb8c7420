// Package stream opens raw PCM streams for resolved media sources and pushes
// them, Opus-encoded, over a Discord voice connection.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"

	"schilliger-bot/internal/music/resolver"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Open resolves a direct audio stream URL for src and starts an ffmpeg
// decode into 48kHz stereo s16le PCM. The returned cleanup kills ffmpeg.
func Open(src *resolver.MediaSource) (io.ReadCloser, func(), error) {
	link, err := streamURL(src.URL)
	if err != nil {
		return nil, nil, err
	}
	return ffmpegPCM(link)
}

// streamURL prefers the in-process YouTube client for watch URLs and falls
// back to yt-dlp for everything else (and for YouTube failures).
func streamURL(pageURL string) (string, error) {
	if isYouTubeURL(pageURL) {
		link, err := youtubeStreamURL(pageURL)
		if err == nil {
			return link, nil
		}
	}
	return ytdlpStreamURL(pageURL)
}

func isYouTubeURL(s string) bool {
	return strings.Contains(s, "youtube.com/watch") || strings.Contains(s, "youtu.be/")
}

func youtubeStreamURL(pageURL string) (string, error) {
	client := youtube.Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	video, err := client.GetVideo(pageURL)
	if err != nil {
		return "", fmt.Errorf("youtube client error: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", errors.New("no audio formats found for video")
	}

	link, err := client.GetStreamURL(video, &formats[0])
	if err != nil {
		return "", fmt.Errorf("get stream URL error: %w", err)
	}
	return link, nil
}

func ytdlpStreamURL(pageURL string) (string, error) {
	out, err := exec.Command("yt-dlp", "-j", "-f", "bestaudio", pageURL).Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp get-url error: %w", err)
	}

	var info struct {
		URL     string `json:"url"`
		Formats []struct {
			URL string `json:"url"`
		} `json:"formats"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return "", fmt.Errorf("json unmarshal error: %w", err)
	}

	link := strings.TrimSpace(info.URL)
	if link == "" && len(info.Formats) > 0 {
		link = strings.TrimSpace(info.Formats[0].URL)
	}
	if link == "" {
		return "", errors.New("empty URL returned from yt-dlp")
	}
	return link, nil
}

func ffmpegPCM(link string) (io.ReadCloser, func(), error) {
	ffmpeg := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, nil, fmt.Errorf("command start error: %w", err)
	}

	cleanup := func() {
		_ = ffmpeg.Process.Kill()
	}

	return reader, cleanup, nil
}
