package extractor

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/config"
	"github.com/edgecomet/unfurl/internal/metrics"
)

// DefaultUserAgent identifies the service when a site does not override
// the user agent.
const DefaultUserAgent = "unfurl/1.0 (bot; +https://github.com/edgecomet/unfurl)"

const defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// State is the shared service state handed to every extractor: config,
// the outbound HTTP client, and the media signing key.
type State struct {
	Config *config.Config
	Client *http.Client

	// SigningKey is the raw HMAC key for media URL signatures, nil when
	// signing is disabled.
	SigningKey []byte

	Log       *zap.Logger
	Collector *metrics.Collector
}

// NewState builds the service state and its outbound client. The client
// follows at most Config.MaxRedirects redirects, bounds connection
// setup by Config.Timeout, and transparently decompresses gzip, deflate
// and brotli bodies.
func NewState(cfg *config.Config, signingKey []byte, logger *zap.Logger, collector *metrics.Collector) *State {
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	transport := &http.Transport{
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: true,
		// decompression is handled by the wrapping round tripper
		DisableCompression: true,
	}

	client := &http.Client{
		Transport: newDecompressingTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &State{
		Config:     cfg,
		Client:     client,
		SigningKey: signingKey,
		Log:        logger.Named("extractor"),
		Collector:  collector,
	}
}

// Sign authenticates a media URL for the downstream proxy: the first 20
// bytes of HMAC-SHA1 under the signing key, URL-safe base64 without
// padding. Empty when signing is disabled.
func (s *State) Sign(value string) string {
	if len(s.SigningKey) == 0 {
		return ""
	}
	mac := hmac.New(sha1.New, s.SigningKey)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewRequest builds an outbound request with the default bot headers.
func (s *State) NewRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("DNT", "1")
	req.Header.Set("User-Agent", DefaultUserAgent)
	return req, nil
}

// ApplySite layers a configured site's request customization on top of
// the defaults.
func ApplySite(req *http.Request, site *config.Site) {
	if site == nil {
		return
	}
	if site.UserAgent != "" {
		req.Header.Set("User-Agent", site.UserAgent)
	}
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
}
