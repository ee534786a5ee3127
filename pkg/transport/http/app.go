package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/debug"
	"github.com/rhuss/pubgate/pkg/output"
	"github.com/rhuss/pubgate/pkg/publisher"
	"github.com/rhuss/pubgate/pkg/publisher/xmlrpc"
	"github.com/rhuss/pubgate/pkg/transport"
)

// Config holds configuration for the HTTP application.
type Config struct {
	// MaxBodySize limits buffered request bodies; zero or less disables
	// the limit.
	MaxBodySize int64
	Logger      *slog.Logger
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Logger:      slog.Default(),
	}
}

// App publishes every HTTP request it serves through one publication.
type App struct {
	publication publisher.Publication
	handler     transport.Publisher
	inflight    *transport.InFlightRegistry
	config      Config
	logger      *slog.Logger
}

// NewApp creates an App that publishes through p using pub. Middleware is
// applied around p in the given order.
func NewApp(pub publisher.Publication, p transport.Publisher, cfg Config, middlewares ...transport.Middleware) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base := transport.PublisherFunc(func(ctx context.Context, req publisher.Request) error {
		err := p.Publish(ctx, req)
		if err != nil {
			renderFailure(req, err)
		}
		return err
	})

	var handler transport.Publisher = base
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(base)
	}

	return &App{
		publication: pub,
		handler:     handler,
		inflight:    transport.NewInFlightRegistry(),
		config:      cfg,
		logger:      cfg.Logger,
	}
}

// InFlight returns the registry of publications currently running.
func (a *App) InFlight() *transport.InFlightRegistry { return a.inflight }

// ServeHTTP publishes r and writes the result to w.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := transport.RequestIDFromContext(ctx)
	if id == "" {
		id = transport.NewRequestID()
		ctx = transport.ContextWithRequestID(ctx, id)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.inflight.Register(id, cancel)
	defer a.inflight.Remove(id)

	entry := &transport.AccessEntry{}
	ctx = transport.ContextWithAccessEntry(ctx, entry)
	out := output.New(startResponse(w, entry), output.WithAuthUserHook(entry.SetUser))

	kind := publisher.SelectKindFor(r)
	debug.Log("transport", "dispatching request",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"kind", kind.String(),
	)

	req, err := publisher.NewRequest(kind, r, a.config.MaxBodySize)
	if err != nil {
		a.writeRequestError(w, kind, err)
		return
	}
	defer func() {
		if err := req.Close(); err != nil {
			a.logger.Warn("closing request", "request_id", id, "error", err)
		}
	}()

	req.SetPublication(a.publication)
	req.Response().SetHeaderOutput(out)

	if err := a.handler.Publish(ctx, req); err != nil && !out.HeadersSent() {
		// Middleware failures, such as a recovered panic, bypass the
		// publisher's own error rendering.
		renderFailure(req, err)
	}

	if !out.HeadersSent() {
		if out.Status() == "" {
			out.SetStatus(strconv.Itoa(http.StatusNoContent), http.StatusText(http.StatusNoContent))
		}
		if _, err := out.Write(nil); err != nil {
			a.logger.Error("writing empty response", "request_id", id, "error", err)
		}
	}
}

// renderFailure replaces whatever the response holds with err, unless the
// client has already seen the headers.
func renderFailure(req publisher.Request, err error) {
	resp := req.Response()
	if resp == nil || resp.HeadersSent() {
		return
	}
	resp.Reset()
	resp.HandleError(err)
	if ferr := resp.Flush(); ferr != nil {
		debug.Log("transport", "flushing error response", "error", ferr)
	}
}

// writeRequestError answers requests that failed before a publication
// request could be built. XML-RPC clients get a fault, everyone else the
// JSON error body.
func (a *App) writeRequestError(w http.ResponseWriter, kind publisher.Kind, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}
	debug.Log("transport", "rejecting request", "kind", kind.String(), "error", apiErr)

	if kind == publisher.KindXMLRPC {
		w.Header().Set("Content-Type", xmlrpc.ContentType)
		w.WriteHeader(http.StatusOK)
		if err := xmlrpc.EncodeFault(w, apiErr.HTTPStatus(), apiErr.Message); err != nil {
			a.logger.Error("writing fault", "error", err)
		}
		return
	}
	transport.WriteAPIError(w, apiErr)
}

// startResponse bridges output.Output to w. Header names are passed
// through without canonicalization and values are trimmed.
func startResponse(w http.ResponseWriter, entry *transport.AccessEntry) output.StartFunc {
	return func(status string, headers []output.Header) (output.Sink, error) {
		code, err := parseStatus(status)
		if err != nil {
			return nil, err
		}

		h := w.Header()
		for _, hdr := range headers {
			name := strings.TrimSpace(hdr.Name)
			if name == "" {
				continue
			}
			h[name] = append(h[name], strings.TrimSpace(hdr.Value))
		}

		entry.SetStatus(status)
		w.WriteHeader(code)

		return func(p []byte) error {
			if len(p) == 0 {
				return nil
			}
			_, err := w.Write(p)
			return err
		}, nil
	}
}

// parseStatus extracts the numeric code from a "<code> <reason>" line.
// net/http always sends its own reason phrase for the code.
func parseStatus(status string) (int, error) {
	codeText, _, _ := strings.Cut(strings.TrimSpace(status), " ")
	code, err := strconv.Atoi(codeText)
	if err != nil || code < 100 || code > 999 {
		return 0, fmt.Errorf("invalid status line %q", status)
	}
	return code, nil
}
