// Package server is the fasthttp front end: it owns the request
// lifecycle from raw URL body to serialized embed, delegating lookup
// coordination to the cache and extraction to the registry.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/unfurl/internal/cache"
	"github.com/edgecomet/unfurl/internal/extractor"
	"github.com/edgecomet/unfurl/internal/metrics"
	"github.com/edgecomet/unfurl/pkg/embed"
)

// maxLookupRetries bounds how often a request re-enters the cache after
// waking up from a publisher that closed without a value.
const maxLookupRetries = 8

type Server struct {
	cache    *cache.Cache
	registry *extractor.Registry
	state    *extractor.State

	log       *zap.Logger
	collector *metrics.Collector
}

// New wires the handler. collector may be nil.
func New(c *cache.Cache, registry *extractor.Registry, state *extractor.State, logger *zap.Logger, collector *metrics.Collector) *Server {
	return &Server{
		cache:     c,
		registry:  registry,
		state:     state,
		log:       logger.Named("server"),
		collector: collector,
	}
}

// Handler returns the fasthttp entry point.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.handleRequest
}

func (s *Server) handleRequest(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/":
		if !ctx.IsPost() {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
		s.handleEmbed(ctx)
	case "/health":
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "Not Found")
	}
}

func (s *Server) handleEmbed(ctx *fasthttp.RequestCtx) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while serving embed",
				zap.Any("panic", r), zap.Stack("stack"))
			s.writeError(ctx, fasthttp.StatusInternalServerError, "Internal Server Error")
			s.recordRequest(fasthttp.StatusInternalServerError, start)
		}
	}()

	rawURL := string(ctx.PostBody())
	params := extractor.Params{Lang: string(ctx.QueryArgs().Peek("l"))}

	value, err := s.Resolve(ctx, rawURL, params)
	if err != nil {
		status := extractor.HTTPStatus(err)
		s.log.Error("request failed",
			zap.String("url", rawURL), zap.Int("status", status), zap.Error(err))

		// server-side causes are not the client's business
		msg := err.Error()
		if status >= 500 {
			msg = "Internal Server Error"
		}
		s.writeError(ctx, status, msg)
		s.recordRequest(status, start)
		return
	}

	body, err := json.Marshal(value)
	if err != nil {
		s.log.Error("marshaling embed", zap.String("url", rawURL), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "Internal Server Error")
		s.recordRequest(fasthttp.StatusInternalServerError, start)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
	s.recordRequest(fasthttp.StatusOK, start)
}

// Resolve answers one embed request: cache lookup, then extraction when
// this request wins the miss. The raw body is the cache key; two bodies
// that differ only in encoding are distinct keys on purpose.
func (s *Server) Resolve(ctx context.Context, rawURL string, params extractor.Params) (embed.Expiring, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !strings.HasPrefix(u.Scheme, "http") || u.Host == "" {
		return embed.Expiring{}, extractor.ErrInvalidURL
	}

	s.log.Info("embed request", zap.String("url", rawURL), zap.String("lang", params.Lang))

	for range maxLookupRetries {
		outcome, err := s.cache.Get(ctx, rawURL)
		if err != nil {
			return embed.Expiring{}, err
		}

		switch {
		case outcome.Hit != nil:
			return *outcome.Hit, nil

		case outcome.Sub != nil:
			entry, ok, err := outcome.Sub.Wait(ctx)
			if err != nil {
				return embed.Expiring{}, err
			}
			if !ok {
				// the extraction was aborted; take another run at the
				// cache, possibly winning the miss this time
				continue
			}
			if entry.IsErrored() {
				return embed.Expiring{}, entry.Err
			}
			return entry.Value(), nil

		case outcome.Token != nil:
			return s.extract(ctx, outcome.Token, u, params)
		}
	}

	return embed.Expiring{}, extractor.Failure(http.StatusInternalServerError)
}

// extract runs the winning request's extraction and settles the token.
// The token is aborted if the extractor panics, so waiting subscribers
// wake up and retry instead of hanging.
func (s *Server) extract(ctx context.Context, token *cache.Token, u *url.URL, params extractor.Params) (embed.Expiring, error) {
	settled := false
	defer func() {
		if !settled {
			s.cache.Abort(token)
		}
	}()

	x := s.registry.Find(u)
	if x == nil {
		return embed.Expiring{}, extractor.ErrNoExtractor
	}

	start := time.Now()
	value, err := x.Extract(ctx, s.state, u, params)

	var entry cache.Entry
	outcome := "ok"
	if err != nil {
		outcome = "error"
		entry = cache.NewErrored(err, time.Now())
	} else {
		entry = cache.NewReady(value)
	}
	if s.collector != nil {
		s.collector.RecordExtraction(x.Name(), outcome, time.Since(start))
	}

	settled = true
	final := s.cache.Put(ctx, token, entry)
	if final.IsErrored() {
		return embed.Expiring{}, final.Err
	}
	return final.Value(), nil
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(msg)
}

func (s *Server) recordRequest(status int, start time.Time) {
	if s.collector != nil {
		s.collector.RecordRequest(status, time.Since(start))
	}
}
