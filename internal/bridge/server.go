// Package bridge carries messages between the page side and the background
// side over local HTTP.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"vsixgrab/internal/dispatcher"
	"vsixgrab/internal/models"
	"vsixgrab/internal/settings"
	"vsixgrab/internal/utils"
)

// ContentScript answers requests addressed to the page side.
type ContentScript interface {
	Extract(ctx context.Context, location string) (models.Descriptor, error)
}

type SettingsStore interface {
	Get(ctx context.Context, defaults map[string]any) (map[string]any, error)
	Set(ctx context.Context, partial map[string]any) error
}

type Server struct {
	router     *mux.Router
	server     *http.Server
	dispatcher *dispatcher.Dispatcher
	downloader dispatcher.Downloader
	settings   SettingsStore
	content    ContentScript
	controls   map[models.Action]*dispatcher.Toggle
	logger     *utils.Logger
}

type Option func(*Server)

// WithContent registers the page side. Without it, content requests get
// ErrReceivingEnd.
func WithContent(cs ContentScript) Option {
	return func(s *Server) { s.content = cs }
}

func New(d *dispatcher.Dispatcher, downloader dispatcher.Downloader, store SettingsStore, opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: d,
		downloader: downloader,
		settings:   store,
		controls: map[models.Action]*dispatcher.Toggle{
			models.ActionVSIX:        {},
			models.ActionVSIXPackage: {},
			models.ActionCopyURL:     {},
		},
		logger: utils.NewNamedLogger("bridge"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.LogServerStart(addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.logger.LogServerStop(err)
	return err
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/bridge/{target}", s.handleBridge).Methods("POST", "OPTIONS")

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.LogRequest(r)
		next.ServeHTTP(w, r)
		s.logger.LogResponse(r, start)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)
		s.setHTTPHeaders(w)

		if r.Method == http.MethodOptions {
			s.logger.LogCORS(r)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", utils.CORSAllowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", utils.CORSAllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", utils.CORSAllowHeaders)
	w.Header().Set("Access-Control-Max-Age", utils.CORSMaxAge)
}

func (s *Server) setHTTPHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", utils.HTTPCacheControl)
	w.Header().Set("Pragma", utils.HTTPPragma)
	w.Header().Set("Expires", utils.HTTPExpires)
	w.Header().Set("X-Content-Type-Options", utils.HTTPContentTypeOptions)
	w.Header().Set("X-Frame-Options", utils.HTTPFrameOptions)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "vsixgrab bridge",
		"targets": s.targets(),
	})
}

func (s *Server) targets() []string {
	targets := []string{TargetBackground}
	if s.content != nil {
		targets = append(targets, TargetContent)
	}
	return targets
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	var msg Message
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxBridgeBodySize)
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.logger.LogJSONError(err)
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch {
	case target == TargetBackground:
		s.handleBackground(w, r, msg)
	case target == TargetContent && s.content != nil:
		s.handleContent(w, r, msg)
	default:
		s.logger.LogNotFound(r.Method, r.URL.Path)
		s.writeError(w, http.StatusNotFound, ErrReceivingEnd.Error())
	}
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request, msg Message) {
	ctx := r.Context()

	switch msg.Action {
	case ActionPing:
		s.writeJSON(w, http.StatusOK, Response{Success: true})

	case ActionDownload:
		if msg.Descriptor != nil {
			action := msg.PackageAction
			if action == "" {
				action = models.ActionVSIX
			}
			s.writeJSON(w, http.StatusOK, s.dispatch(ctx, *msg.Descriptor, action))
			return
		}
		if msg.URL == "" {
			s.writeJSON(w, http.StatusOK, failure(fmt.Errorf("%w: download needs a descriptor or a url", models.ErrMalformedInput)))
			return
		}
		id, err := s.downloader.Download(ctx, msg.URL, msg.Filename)
		if err != nil {
			s.writeJSON(w, http.StatusOK, failure(err))
			return
		}
		s.writeJSON(w, http.StatusOK, Response{Success: true, DownloadID: id})

	case ActionCopy:
		if msg.Descriptor == nil {
			s.writeJSON(w, http.StatusOK, failure(fmt.Errorf("%w: copy needs a descriptor", models.ErrMalformedInput)))
			return
		}
		s.writeJSON(w, http.StatusOK, s.dispatch(ctx, *msg.Descriptor, models.ActionCopyURL))

	case ActionGetSettings:
		defaults := msg.Settings
		if defaults == nil {
			defaults = map[string]any{settings.KeyAutoInject: true}
		}
		values, err := s.settings.Get(ctx, defaults)
		if err != nil {
			s.writeJSON(w, http.StatusOK, failure(err))
			return
		}
		s.writeJSON(w, http.StatusOK, Response{Success: true, Settings: values})

	case ActionSetSettings:
		if err := s.settings.Set(ctx, msg.Settings); err != nil {
			s.writeJSON(w, http.StatusOK, failure(err))
			return
		}
		s.writeJSON(w, http.StatusOK, Response{Success: true})

	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown action %q", msg.Action))
	}
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, msg Message) {
	if msg.Action != ActionExtract {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown action %q", msg.Action))
		return
	}

	desc, err := s.content.Extract(r.Context(), msg.Location)
	if err != nil {
		resp := failure(err)
		resp.Descriptor = &desc
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Descriptor: &desc, Complete: desc.IsComplete()})
}

// dispatch runs one action unless the same action is still settling from a
// previous request.
func (s *Server) dispatch(ctx context.Context, desc models.Descriptor, action models.Action) Response {
	ctl, ok := s.controls[action]
	if !ok {
		return failure(fmt.Errorf("%w: action %q", models.ErrMalformedInput, action))
	}
	if !ctl.Acquire() {
		return Response{Success: false, Error: "busy", Outcome: "busy"}
	}

	o := s.dispatcher.Dispatch(ctx, desc, action, ctl)
	resp := Response{
		Success:    o.OK(),
		Outcome:    string(o.Kind),
		DownloadID: o.DownloadID,
		Text:       o.Text,
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.logger.LogNotFound(r.Method, r.URL.Path)
	s.writeError(w, http.StatusNotFound, "Page not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.logger.LogMethodNotAllowed(r.Method, r.URL.Path)
	s.writeError(w, http.StatusMethodNotAllowed, "Method not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set(utils.ContentTypeHeader, utils.JSONContentType)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.LogJSONError(err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
		"status":  status,
	})
}
