package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// DefaultFontURL points at a TrueType script face used for names on
// certificates.
const DefaultFontURL = "https://github.com/google/fonts/raw/main/ofl/greatvibes/GreatVibes-Regular.ttf"

const maxFontBytes = 4 << 20

var ErrNotTrueType = errors.New("pdf: font is not TrueType")

// FontSource supplies the bytes of a TrueType font.
type FontSource interface {
	Font(ctx context.Context) ([]byte, error)
}

// RemoteFont downloads a font once and keeps it. Repeated failures open a
// circuit breaker so certificate runs stop waiting on a dead host.
type RemoteFont struct {
	URL    string
	Log    zerolog.Logger
	client *http.Client
	cb     *gobreaker.CircuitBreaker[[]byte]

	mu     sync.Mutex
	cached []byte
}

func NewRemoteFont(url string, timeout time.Duration, log zerolog.Logger) *RemoteFont {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	f := &RemoteFont{
		URL:    url,
		Log:    log,
		client: &http.Client{Timeout: timeout},
	}
	f.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "remote-font",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.Log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("font breaker state changed")
		},
	})
	return f
}

func (f *RemoteFont) Font(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if f.cached != nil {
		data := f.cached
		f.mu.Unlock()
		return data, nil
	}
	f.mu.Unlock()

	if f.URL == "" {
		return nil, errors.New("pdf: no font url")
	}

	data, err := f.cb.Execute(func() ([]byte, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cached = data
	f.mu.Unlock()
	return data, nil
}

func (f *RemoteFont) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf: font fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontBytes))
	if err != nil {
		return nil, err
	}
	if !isTrueType(data) {
		return nil, ErrNotTrueType
	}
	return data, nil
}

func isTrueType(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	magic := data[:4]
	return bytes.Equal(magic, []byte{0x00, 0x01, 0x00, 0x00}) || bytes.Equal(magic, []byte("true"))
}

// StaticFont serves fixed bytes; Err, when set, is returned instead.
type StaticFont struct {
	Data []byte
	Err  error
}

func (s StaticFont) Font(context.Context) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Data, nil
}
