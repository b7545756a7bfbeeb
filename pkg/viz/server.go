package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	mu             sync.RWMutex
	srv            *http.Server
	spectrum       *Spectrum
	updateInterval time.Duration
	image          []byte
	imageTime      time.Time
	devices        func() []sdr.Kwargs
	status         func() interface{}
	logger         zerolog.Logger
}

type ServerOption func(s *Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDevices sets the enumeration served on /devices.
func WithDevices(fn func() []sdr.Kwargs) ServerOption {
	return func(s *Server) {
		s.devices = fn
	}
}

// WithStatus sets the value served as JSON on /status.
func WithStatus(fn func() interface{}) ServerOption {
	return func(s *Server) {
		s.status = fn
	}
}

func NewServer(port int, updateInterval time.Duration, spectrum *Spectrum, opts ...ServerOption) *Server {
	s := &Server{
		srv:            &http.Server{Addr: fmt.Sprintf(":%d", port)},
		spectrum:       spectrum,
		updateInterval: updateInterval,
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = s.Handler()
	return s
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()
	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		http.Redirect(w, r, "/view", http.StatusFound)
	})
	handler.GET("/view", s.handleView)
	handler.GET("/img/spectrum.png", s.handleImage)
	handler.GET("/devices", s.handleDevices)
	handler.GET("/status", s.handleStatus)
	return handler
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	title := "Turbine Input"
	if s.spectrum != nil {
		title += ": " + s.spectrum.Name()
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html><head><title>%s</title>
<script type="text/javascript">
	var toggleRefresh = true;
	function toggleOn() {
		toggleRefresh = !toggleRefresh;
	}
	window.onload = function() {
		var img = document.getElementById('spectrum');
		setInterval(function() {
			if (toggleRefresh) {
				img.src = img.src.split("?")[0] + "?" + new Date().getTime();
			}
		}, %d);
	}
</script></head>
<body style='background-color: black'>
<button onclick="toggleOn()">Refresh?</button>
<div><img id="spectrum" src="/img/spectrum.png?%d" /></div>
</body></html>`, html.EscapeString(title), s.updateInterval.Milliseconds(), time.Now().UnixMicro())
}

// handleImage renders at most once per update interval; requests in
// between get the cached PNG.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.spectrum == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	if s.image == nil || time.Since(s.imageTime) >= s.updateInterval {
		img, err := s.spectrum.Image()
		if err != nil {
			s.mu.Unlock()
			s.logger.Error().Err(err).Msg("error rendering spectrum")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.image = img
		s.imageTime = time.Now()
	}
	img := s.image
	s.mu.Unlock()

	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ret := []map[string]string{}
	if s.devices != nil {
		for _, dev := range s.devices() {
			ret = append(ret, dev.Map())
		}
	}
	s.writeJSON(w, ret)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.status == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.status())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("error encoding response")
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	ev := s.logger.Info().Str("addr", s.srv.Addr)
	if s.spectrum != nil {
		ev = ev.Str("spectrum", s.spectrum.Name())
	}
	ev.Msg("viz server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
