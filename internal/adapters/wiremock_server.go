package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
)

const (
	mappingExtension = ".json"
	shutdownTimeout  = 5 * time.Second
)

// WireMockServerAdapter serves WireMock JSON mappings over plain HTTP.
// One instance serves one stub bundle.
type WireMockServerAdapter struct {
	mu       sync.RWMutex
	server   *http.Server
	port     int
	running  bool
	mappings []wireMockMapping
	next     int
}

var _ ports.HTTPServerStubPort = (*WireMockServerAdapter)(nil)

func NewWireMockServerAdapter() *WireMockServerAdapter {
	return &WireMockServerAdapter{port: -1}
}

// NewWireMockServerFactory returns a factory creating a fresh engine per
// bundle.
func NewWireMockServerFactory() ports.HTTPServerStubFactory {
	return func() ports.HTTPServerStubPort {
		return NewWireMockServerAdapter()
	}
}

func (s *WireMockServerAdapter) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("stub server already running on port %d", s.port))
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("failed to bind stub server to port %d", port)).
			WithCause(err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	server := s.server
	logger := log.Ctx(ctx).With().Int("port", s.port).Logger()
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("stub server stopped unexpectedly")
		}
	}()
	logger.Debug().Msg("stub server started")
	return nil
}

func (s *WireMockServerAdapter) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return -1
	}
	return s.port
}

func (s *WireMockServerAdapter) HTTPSPort() int {
	return -1
}

func (s *WireMockServerAdapter) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *WireMockServerAdapter) IsAccepted(file string) bool {
	return strings.EqualFold(filepath.Ext(file), mappingExtension)
}

// RegisterMappings loads every mapping file. Files that cannot be parsed
// are skipped with a warning.
func (s *WireMockServerAdapter) RegisterMappings(ctx context.Context, files []string) error {
	var loaded []wireMockMapping
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("failed to read stub mapping")
			continue
		}
		mappings, err := parseWireMockMappings(data)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("failed to parse stub mapping")
			continue
		}
		for i := range mappings {
			mappings[i].Source = file
		}
		loaded = append(loaded, mappings...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range loaded {
		s.next++
		loaded[i].normalize(s.next)
	}
	s.mappings = append(s.mappings, loaded...)
	sortMappings(s.mappings)
	log.Ctx(ctx).Debug().Int("mappings", len(loaded)).Int("total", len(s.mappings)).Msg("registered stub mappings")
	return nil
}

func (s *WireMockServerAdapter) RegisteredMappings() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload := struct {
		Mappings []wireMockMapping `json:"mappings"`
	}{Mappings: append([]wireMockMapping{}, s.mappings...)}
	if payload.Mappings == nil {
		payload.Mappings = []wireMockMapping{}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *WireMockServerAdapter) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.server
	s.running = false
	s.server = nil
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stop stub server").
			WithCause(err)
	}
	return nil
}

func (s *WireMockServerAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}
	mapping, ok := s.match(r, body)
	if !ok {
		if r.URL.Path == "/ping" || r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "OK")
			return
		}
		http.Error(w, "no stub mapping matched the request", http.StatusNotFound)
		return
	}
	response := mapping.Response
	payload, err := response.body()
	if err != nil {
		http.Error(w, "invalid stub response body", http.StatusInternalServerError)
		return
	}
	if response.FixedDelayMillis > 0 {
		select {
		case <-time.After(time.Duration(response.FixedDelayMillis) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}
	for name, value := range response.Headers {
		w.Header().Set(name, value)
	}
	if len(response.JSONBody) > 0 && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(response.Status)
	_, _ = w.Write(payload)
}

func (s *WireMockServerAdapter) match(r *http.Request, body []byte) (wireMockMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, mapping := range s.mappings {
		if mapping.matches(r, body) {
			return mapping, true
		}
	}
	return wireMockMapping{}, false
}
