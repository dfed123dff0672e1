// Package youtube fetches caption tracks from YouTube's timedtext endpoint.
package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/phrazzld/vidscribe/internal/transcript"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds a caption document.
const maxBodyBytes int64 = 8 << 20

// Config holds Fetcher settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound requests. Zero disables throttling.
	RequestsPerSecond float64
}

// Fetcher implements transcript.Source.
type Fetcher struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
	logger  *slog.Logger
}

var _ transcript.Source = (*Fetcher)(nil)

// NewFetcher creates a Fetcher for cfg.BaseURL.
func NewFetcher(cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid transcript base URL %q", cfg.BaseURL)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout
	if client.Timeout <= 0 {
		client.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Fetcher{
		baseURL: base,
		client:  client,
		limiter: limiter,
		maxBody: maxBodyBytes,
		logger:  logger.With("component", "youtube_fetcher"),
	}, nil
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

type trackList struct {
	Tracks []struct {
		LangCode  string `xml:"lang_code,attr"`
		IsDefault string `xml:"lang_default,attr"`
	} `xml:"track"`
}

// Fetch returns the caption track of videoID in language.
func (f *Fetcher) Fetch(ctx context.Context, videoID, language string) (*transcript.Transcript, error) {
	body, err := f.get(ctx, url.Values{"v": {videoID}, "lang": {language}})
	if err != nil {
		return nil, err
	}

	var doc timedText
	if len(body) > 0 {
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("%w: malformed caption document: %v", transcript.ErrUnavailable, err)
		}
	}

	t := &transcript.Transcript{VideoID: videoID, Language: language}
	for _, txt := range doc.Texts {
		t.Segments = append(t.Segments, transcript.Segment{
			Start:    seconds(txt.Start),
			Duration: seconds(txt.Dur),
			Text:     html.UnescapeString(txt.Body),
		})
	}
	if t.Text() == "" {
		return nil, fmt.Errorf("%w: no %s captions for video %s", transcript.ErrUnavailable, language, videoID)
	}
	return t, nil
}

// FetchDefault returns the track YouTube marks as default, or the first
// listed track.
func (f *Fetcher) FetchDefault(ctx context.Context, videoID string) (*transcript.Transcript, error) {
	body, err := f.get(ctx, url.Values{"v": {videoID}, "type": {"list"}})
	if err != nil {
		return nil, err
	}

	var list trackList
	if len(body) > 0 {
		if err := xml.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: malformed track list: %v", transcript.ErrUnavailable, err)
		}
	}
	if len(list.Tracks) == 0 {
		return nil, fmt.Errorf("%w: video %s has no caption tracks", transcript.ErrUnavailable, videoID)
	}

	lang := list.Tracks[0].LangCode
	for _, tr := range list.Tracks {
		if tr.IsDefault == "true" {
			lang = tr.LangCode
			break
		}
	}
	return f.Fetch(ctx, videoID, lang)
}

// get performs a timedtext request. A 404 means the track does not exist
// and is permanent; other failures are returned as plain errors so the job
// is retried.
func (f *Fetcher) get(ctx context.Context, q url.Values) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := f.baseURL.JoinPath("api", "timedtext")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build timedtext request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	f.logger.DebugContext(ctx, "timedtext response",
		"video_id", q.Get("v"),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: timedtext returned 404 for video %s", transcript.ErrUnavailable, q.Get("v"))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("timedtext returned status %d", resp.StatusCode)
	}

	// Read one byte past the limit so an oversized document is reported
	// rather than parsed truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read timedtext response: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: timedtext response for video %s exceeds %d bytes",
			transcript.ErrTooLarge, q.Get("v"), f.maxBody)
	}
	return []byte(strings.TrimSpace(string(body))), nil
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
