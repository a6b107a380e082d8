// Package youtube fetches video transcripts.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
)

// ErrNoTranscript means the video has no usable transcript text.
var ErrNoTranscript = errors.New("no transcript available")

// Client retrieves transcripts through the YouTube player API.
type Client struct {
	yt      yt.Client
	lang    string
	timeout time.Duration
}

// NewClient returns a client asking for transcripts in lang. Each call gives
// up after timeout.
func NewClient(lang string, timeout time.Duration) *Client {
	return &Client{
		yt:      yt.Client{HTTPClient: &http.Client{Timeout: timeout}},
		lang:    lang,
		timeout: timeout,
	}
}

// Transcript returns the transcript segments of the video, in order.
func (c *Client) Transcript(ctx context.Context, videoID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	video, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}

	transcript, err := c.yt.GetTranscriptCtx(ctx, video, c.lang)
	if err != nil {
		return nil, fmt.Errorf("transcript for %s: %w", videoID, err)
	}

	segments := make([]string, 0, len(transcript))
	for _, seg := range transcript {
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("transcript for %s: %w", videoID, ErrNoTranscript)
	}
	return segments, nil
}
