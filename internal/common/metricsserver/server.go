// Package metricsserver runs the Prometheus exposition endpoint on its
// own listener, away from the embed-serving port.
package metricsserver

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler serves the metrics exposition, normally the metrics.Collector.
type Handler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Start launches the metrics listener in the background and returns its
// server for shutdown. An empty address disables metrics and returns nil.
func Start(address string, handler Handler, logger *zap.Logger) *fasthttp.Server {
	if address == "" {
		logger.Info("metrics listener disabled")
		return nil
	}

	server := &fasthttp.Server{
		Handler:            route(handler),
		Name:               "unfurl-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1024,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
		Concurrency:        100,
	}

	go func() {
		logger.Info("metrics listener started", zap.String("address", address))
		if err := server.ListenAndServe(address); err != nil {
			logger.Error("metrics listener stopped",
				zap.String("address", address), zap.Error(err))
		}
	}()

	return server
}

// route serves the exposition on /metrics and nothing else.
func route(handler Handler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/metrics" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString("Not Found")
			return
		}
		handler.ServeHTTP(ctx)
	}
}
