package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/pubgate/pkg/api"
	"github.com/rhuss/pubgate/pkg/auth"
	"github.com/rhuss/pubgate/pkg/debug"
	"github.com/rhuss/pubgate/pkg/observability"
	"github.com/rhuss/pubgate/pkg/publisher"
	"github.com/rhuss/pubgate/pkg/storage"
)

// WriteScope is the scope required to PUT or DELETE objects.
const WriteScope = "write"

const skinMarker = "++skin++"

const (
	allowObject = "GET, HEAD, POST, PUT, DELETE, OPTIONS"
	allowNull   = "PUT, OPTIONS"
	allowValue  = "GET, HEAD, POST, PUT, OPTIONS"
	allowList   = "GET, HEAD, POST, OPTIONS"
)

// Option configures a Publication.
type Option func(*Publication)

// WithLogger sets the logger for failures handled by the publication.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publication) { p.logger = l }
}

// WithClock overrides the time source used for modification stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publication) { p.now = now }
}

// Publication publishes the objects of a store. It is safe for
// concurrent use; all request state lives on the request.
type Publication struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

var _ publisher.Publication = (*Publication)(nil)

// New returns a publication over store.
func New(store storage.ObjectStore, opts ...Option) *Publication {
	p := &Publication{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BeforeTraversal attaches the authenticated principal to the request.
func (p *Publication) BeforeTraversal(ctx context.Context, req publisher.Request) error {
	if id := auth.IdentityFrom(ctx); id != nil {
		req.SetPrincipal(id)
	}
	return nil
}

// GetApplication returns the root object.
func (p *Publication) GetApplication(ctx context.Context, req publisher.Request) (any, error) {
	root, err := p.store.Get(ctx, "/")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError("no root object")
		}
		return nil, fmt.Errorf("loading root: %w", err)
	}
	if err := checkPermission(ctx, root); err != nil {
		return nil, err
	}
	return &Document{Object: root}, nil
}

// CallTraversalHooks re-checks access to every object reached, so
// objects whose permission changed mid-request are not served.
func (p *Publication) CallTraversalHooks(ctx context.Context, req publisher.Request, ob any) error {
	if doc, ok := ob.(*Document); ok {
		return checkPermission(ctx, doc.Object)
	}
	return nil
}

// TraverseName resolves one path segment.
func (p *Publication) TraverseName(ctx context.Context, req publisher.Request, ob any, name string) (any, error) {
	if skin, ok := strings.CutPrefix(name, skinMarker); ok {
		if skin == "" {
			return nil, api.NewNotFoundError("empty skin name")
		}
		debug.Log("traversal", "skin selected", "skin", skin)
		req.ProvideSkin(skin)
		return ob, nil
	}

	doc, ok := ob.(*Document)
	if !ok {
		return nil, notFound(req, name)
	}

	child, err := p.store.Get(ctx, storage.JoinPath(doc.Path, name))
	switch {
	case err == nil:
		if err := checkPermission(ctx, child); err != nil {
			return nil, err
		}
		return &Document{Object: child}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("traversing %s: %w", name, err)
	}

	if v, ok := doc.property(name); ok {
		return &Property{Owner: doc, Name: name, Value: v}, nil
	}
	if name == ListingView {
		return p.listing(ctx, doc)
	}
	if req.Method() == http.MethodPut && len(req.TraversalStack()) == 0 {
		return &NullResource{Parent: doc, Name: name}, nil
	}
	return nil, notFound(req, name)
}

func (p *Publication) listing(ctx context.Context, doc *Document) (*Listing, error) {
	children, err := p.store.Children(ctx, doc.Path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", doc.Path, err)
	}
	l := &Listing{Parent: doc}
	for _, c := range children {
		// Children the caller may not see are left out silently.
		if checkPermission(ctx, c) == nil {
			l.Children = append(l.Children, &Document{Object: c})
		}
	}
	return l, nil
}

// AfterTraversal resolves the default view of a document requested by a
// browser. A skin-specific view ("view:<skin>" property) wins over the
// DefaultView.
func (p *Publication) AfterTraversal(ctx context.Context, req publisher.Request, ob any) error {
	doc, ok := ob.(*Document)
	if !ok || req.Kind() != publisher.KindBrowser {
		return nil
	}

	view := doc.DefaultView
	if skin := req.Skin(); skin != "" {
		if v := doc.Properties[skinViewPrefix+skin]; v != "" {
			view = v
		}
	}
	if view == "" {
		return nil
	}

	obj, err := p.store.Get(ctx, storage.JoinPath(doc.Path, view))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return api.NewNotFoundError(fmt.Sprintf("default view %q of %s not found", view, doc.Path))
		}
		return fmt.Errorf("loading default view: %w", err)
	}
	if err := checkPermission(ctx, obj); err != nil {
		return err
	}
	debug.Log("traversal", "default view", "path", doc.Path, "view", view)
	doc.view = &Document{Object: obj}
	return nil
}

// CallObject performs the request method on the traversed object.
func (p *Publication) CallObject(ctx context.Context, req publisher.Request, ob any) (any, error) {
	resp := req.Response()

	switch req.Method() {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		switch o := ob.(type) {
		case *Document:
			if o.view != nil {
				return o.view, nil
			}
			return o, nil
		case *NullResource:
			return nil, notFound(req, o.Name)
		default:
			return ob, nil
		}

	case http.MethodPut:
		if err := requireScope(ctx, WriteScope); err != nil {
			return nil, err
		}
		return nil, p.put(ctx, req, ob)

	case http.MethodDelete:
		if err := requireScope(ctx, WriteScope); err != nil {
			return nil, err
		}
		return nil, p.delete(ctx, req, ob)

	case http.MethodOptions:
		resp.SetHeader("Allow", allowed(ob))
		return nil, nil
	}

	resp.SetHeader("Allow", allowed(ob))
	return nil, api.NewMethodNotAllowedError(req.Method())
}

func (p *Publication) put(ctx context.Context, req publisher.Request, ob any) error {
	resp := req.Response()
	contentType := req.Header("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var (
		obj     *storage.Object
		created bool
	)
	switch o := ob.(type) {
	case *NullResource:
		obj = &storage.Object{
			Path:        o.Path(),
			Title:       o.Name,
			ContentType: contentType,
			Content:     req.Body(),
		}
		created = true
	case *Document:
		obj = o.Object.Clone()
		obj.ContentType = contentType
		obj.Content = req.Body()
	case *Property:
		var err error
		obj, err = withProperty(o.Owner.Object, o.Name, string(req.Body()))
		if err != nil {
			return err
		}
	default:
		resp.SetHeader("Allow", allowed(ob))
		return api.NewMethodNotAllowedError(req.Method())
	}
	if title := req.Form().Get("title"); title != "" {
		obj.Title = title
	}
	obj.ModifiedAt = p.now().UTC()

	if err := p.store.Put(ctx, obj); err != nil {
		observability.ObjectWritesTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("storing %s: %w", obj.Path, err)
	}

	if created {
		observability.ObjectWritesTotal.WithLabelValues("put", "created").Inc()
		resp.SetStatus(http.StatusCreated)
		resp.SetHeader("Location", obj.Path)
	} else {
		observability.ObjectWritesTotal.WithLabelValues("put", "updated").Inc()
		resp.SetStatus(http.StatusNoContent)
	}
	debug.Log("storage", "object stored", "path", obj.Path, "bytes", len(obj.Content), "created", created)
	return nil
}

func (p *Publication) delete(ctx context.Context, req publisher.Request, ob any) error {
	resp := req.Response()
	doc, ok := ob.(*Document)
	if !ok {
		resp.SetHeader("Allow", allowed(ob))
		return api.NewMethodNotAllowedError(req.Method())
	}
	if doc.Path == "/" {
		return api.NewConflictError("the root object cannot be deleted")
	}

	if err := p.store.Delete(ctx, doc.Path); err != nil {
		observability.ObjectWritesTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting %s: %w", doc.Path, err)
	}
	observability.ObjectWritesTotal.WithLabelValues("delete", "deleted").Inc()
	resp.SetStatus(http.StatusNoContent)
	debug.Log("storage", "object deleted", "path", doc.Path)
	return nil
}

// AfterCall has nothing to finish; writes are committed by the store.
func (p *Publication) AfterCall(ctx context.Context, req publisher.Request, ob any) error {
	return nil
}

// HandleException renders err into the response. Store conflicts are
// retried while retries remain.
func (p *Publication) HandleException(ctx context.Context, req publisher.Request, ob any, err error, retryAllowed bool) error {
	resp := req.Response()
	if resp.HeadersSent() {
		p.logger.Error("error after response started",
			"method", req.Method(),
			"path", req.URL().Path,
			"error", err,
		)
		return nil
	}

	if errors.Is(err, storage.ErrConflict) && retryAllowed {
		return fmt.Errorf("%w: %w", publisher.ErrRetry, err)
	}

	mapped := mapError(err)
	allow := resp.Header("Allow")
	resp.Reset()
	resp.HandleError(mapped)

	switch resp.Status() {
	case http.StatusUnauthorized:
		resp.SetHeader("WWW-Authenticate", auth.Challenge)
	case http.StatusMethodNotAllowed:
		if allow != "" {
			resp.SetHeader("Allow", allow)
		}
	}

	var apiErr *api.APIError
	if errors.As(mapped, &apiErr) && apiErr.Type != api.ErrorTypeServerError {
		debug.Log("publisher", "request failed",
			"method", req.Method(),
			"path", req.URL().Path,
			"error", err,
		)
	} else {
		p.logger.Error("publication error",
			"method", req.Method(),
			"path", req.URL().Path,
			"error", err,
		)
	}
	return nil
}

// mapError turns storage errors into API errors; anything else is left
// for the renderer to report as a server error.
func mapError(err error) error {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("object not found")
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError("object was modified concurrently")
	case errors.Is(err, storage.ErrInvalidPath):
		return api.NewInvalidRequestError("path", "invalid object path")
	}
	return err
}

func checkPermission(ctx context.Context, obj *storage.Object) error {
	if obj.Permission == "" || obj.Permission == storage.PermissionPublic {
		return nil
	}
	id := auth.IdentityFrom(ctx)
	if id.HasScope(obj.Permission) {
		return nil
	}
	if id.IsAnonymous() {
		return api.NewUnauthorizedError("login required to access " + obj.Path)
	}
	return api.NewForbiddenError(fmt.Sprintf("%s may not access %s", id.Subject, obj.Path))
}

func requireScope(ctx context.Context, scope string) error {
	id := auth.IdentityFrom(ctx)
	if id.HasScope(scope) {
		return nil
	}
	if id.IsAnonymous() {
		return api.NewUnauthorizedError("login required")
	}
	return api.NewForbiddenError(fmt.Sprintf("%s lacks the %q scope", id.Subject, scope))
}

func notFound(req publisher.Request, name string) error {
	path := "/" + strings.Join(append(req.Traversed(), name), "/")
	return api.NewNotFoundError(path + " not found")
}

func allowed(ob any) string {
	switch ob.(type) {
	case *NullResource:
		return allowNull
	case *Document:
		return allowObject
	case *Property:
		return allowValue
	default:
		return allowList
	}
}
