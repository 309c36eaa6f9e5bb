package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/pathwatchd/internal/pathmon"
	"github.com/dmdmdm-nz/pathwatchd/pkg/version"
)

// minVersionHeader lets a client demand a minimum server version before
// streaming; requests asking for more than we are get 426.
const minVersionHeader = "X-Pathwatch-Min-Version"

// PathProvider gives synchronous access to the current snapshot. Implemented
// by pathmon.Notifier.
type PathProvider interface {
	Current() *pathmon.Snapshot
}

// Service represents the HTTP status server over the path notifier
type Service struct {
	address string
	port    int

	provider PathProvider

	mu      sync.Mutex
	clients map[string]chan *pathmon.Snapshot
	closed  bool

	server *http.Server
}

func NewService(host string, port int) *Service {
	return &Service{
		address: host,
		port:    port,
		clients: make(map[string]chan *pathmon.Snapshot),
	}
}

// Attach wires the snapshot provider (must be called before Start).
func (s *Service) Attach(p PathProvider) {
	s.provider = p
}

// Publish fans a committed path change out to the streaming clients. It is
// the subscriber callback target: called at most once per settled change,
// never concurrently with itself. Slow clients miss intermediate states but
// always get the latest one eventually.
func (s *Service) Publish(snap *pathmon.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for id, ch := range s.clients {
		select {
		case ch <- snap:
		default:
			log.WithField("client", id).Trace("Dropping path change for slow client")
		}
	}
}

// Start initializes and starts the HTTP server
func (s *Service) Start(ctx context.Context) error {
	if s.provider == nil {
		log.Error("Attach was not called before Start")
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/current", s.handleCurrent)
	mux.HandleFunc("/watch", s.handleWatch)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.address, s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	log.Infof("Starting pathwatchd API service at %s:%d", s.address, s.port)
	defer log.Info("Stopping pathwatchd API service")

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Service) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.provider.Current()
	status := statusFor(snap)

	if etag := snap.Fingerprint(); etag != "" {
		w.Header().Set("ETag", `"`+etag+`"`)
		if r.Header.Get("If-None-Match") == `"`+etag+`"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode path status: %v", err), http.StatusInternalServerError)
	}
}

// checkMinVersion validates the optional client version gate. Returns false
// after writing the response when the gate fails.
func (s *Service) checkMinVersion(w http.ResponseWriter, r *http.Request) bool {
	want := r.Header.Get(minVersionHeader)
	if want == "" {
		return true
	}
	minVersion, err := semver.NewVersion(want)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid %s: %v", minVersionHeader, err), http.StatusBadRequest)
		return false
	}
	current, err := semver.NewVersion(version.Version)
	if err != nil {
		// Dev builds carry no parseable version; let them through.
		return true
	}
	if current.LessThan(minVersion) {
		http.Error(w, fmt.Sprintf("Server version %s below requested minimum %s",
			version.Version, want), http.StatusUpgradeRequired)
		return false
	}
	return true
}

func (s *Service) addClient() (string, chan *pathmon.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", nil, false
	}
	id := uuid.NewString()
	ch := make(chan *pathmon.Snapshot, 8)
	s.clients[id] = ch
	return id, ch, true
}

func (s *Service) removeClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(ch)
	}
}
