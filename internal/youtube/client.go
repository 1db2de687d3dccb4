package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
}

// ExtractVideoID pulls the 11-character video ID out of a watch, share or
// embed URL.
func ExtractVideoID(rawURL string) (string, error) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", goerr.Wrap(domain.ErrInvalidInput, "not a YouTube video URL", goerr.V("url", rawURL))
}

// Client fetches video metadata and captions. It is a thin collaborator for
// the retrieval core and holds no state beyond HTTP configuration.
type Client struct {
	oembedBaseURL    string
	timedtextBaseURL string
	lang             string
	client           *http.Client
}

// Config configures the YouTube client.
type Config struct {
	Lang    string
	Timeout time.Duration

	// Endpoint overrides, used by tests.
	OEmbedBaseURL    string
	TimedTextBaseURL string
}

func NewClient(cfg Config) *Client {
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.OEmbedBaseURL == "" {
		cfg.OEmbedBaseURL = "https://www.youtube.com/oembed"
	}
	if cfg.TimedTextBaseURL == "" {
		cfg.TimedTextBaseURL = "https://video.google.com/timedtext"
	}
	return &Client{
		oembedBaseURL:    cfg.OEmbedBaseURL,
		timedtextBaseURL: cfg.TimedTextBaseURL,
		lang:             cfg.Lang,
		client:           &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchVideoInfo resolves a video URL into its ID and title using the public
// oEmbed endpoint.
func (c *Client) FetchVideoInfo(ctx context.Context, videoURL string) (domain.VideoInfo, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return domain.VideoInfo{}, err
	}

	endpoint := fmt.Sprintf("%s?format=json&url=%s", c.oembedBaseURL, url.QueryEscape(videoURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.VideoInfo{}, goerr.Wrap(err, "building oembed request failed")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.VideoInfo{}, goerr.Wrap(err, "fetching video metadata failed", goerr.V("video_id", videoID))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.VideoInfo{}, goerr.New("fetching video metadata failed",
			goerr.V("status", resp.Status), goerr.V("video_id", videoID))
	}

	var out struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.VideoInfo{}, goerr.Wrap(err, "decoding oembed response failed", goerr.V("video_id", videoID))
	}
	if out.Title == "" {
		return domain.VideoInfo{}, goerr.New("video has no title", goerr.V("video_id", videoID))
	}
	return domain.VideoInfo{VideoID: videoID, Title: out.Title, URL: videoURL}, nil
}

// FetchTranscript downloads the caption track for a video from the timedtext
// endpoint and maps it to transcript entries.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) ([]domain.TranscriptEntry, error) {
	endpoint := fmt.Sprintf("%s?lang=%s&v=%s", c.timedtextBaseURL, url.QueryEscape(c.lang), url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "building timedtext request failed")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "fetching transcript failed", goerr.V("video_id", videoID))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, goerr.New("fetching transcript failed",
			goerr.V("status", resp.Status), goerr.V("video_id", videoID))
	}

	var track struct {
		Texts []struct {
			Start float64 `xml:"start,attr"`
			Dur   float64 `xml:"dur,attr"`
			Body  string  `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&track); err != nil {
		return nil, goerr.Wrap(err, "decoding transcript failed", goerr.V("video_id", videoID))
	}
	if len(track.Texts) == 0 {
		return nil, goerr.New("no transcript available", goerr.V("video_id", videoID), goerr.V("lang", c.lang))
	}

	entries := make([]domain.TranscriptEntry, 0, len(track.Texts))
	for _, t := range track.Texts {
		// caption bodies arrive double-escaped
		text := strings.TrimSpace(html.UnescapeString(html.UnescapeString(t.Body)))
		if text == "" {
			continue
		}
		entries = append(entries, domain.TranscriptEntry{Text: text, Start: t.Start, Duration: t.Dur})
	}
	if len(entries) == 0 {
		return nil, goerr.New("transcript contains no text", goerr.V("video_id", videoID))
	}
	return entries, nil
}
