// Package dashboard serves a local WebSocket feed of settings and note
// changes plus a small HTTP search proxy. A browser or editor plugin can
// connect to mirror the library in real time.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/marxiv/marxiv/internal/arxiv"
	syncpkg "github.com/marxiv/marxiv/internal/sync"
)

// writeTimeout bounds a single frame write to one client.
const writeTimeout = 5 * time.Second

// MessageType identifies the kind of dashboard message.
type MessageType string

const (
	// MessageTypeSettingUpdate reports a settings value change.
	MessageTypeSettingUpdate MessageType = "setting_update"

	// MessageTypeNotesUpdate reports a change to one paper's notes.
	MessageTypeNotesUpdate MessageType = "notes_update"

	// MessageTypeHello is sent once on connect.
	MessageTypeHello MessageType = "hello"
)

// Message is a dashboard broadcast frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SettingUpdateData carries a changed settings value.
type SettingUpdateData struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
}

// NotesUpdateData carries one paper's notes after a change.
type NotesUpdateData struct {
	PaperID string `json:"paper_id"`
	Count   int    `json:"count"`
	Notes   any    `json:"notes"`
}

// Server manages WebSocket clients and broadcasts library changes.
type Server struct {
	addr     string
	listener net.Listener
	httpSrv  *http.Server

	facade *syncpkg.Facade
	search *arxiv.Client

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	events chan Message

	unsubscribe []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: localhost:8787).
	Addr string

	// Facade whose events are broadcast. Required.
	Facade *syncpkg.Facade

	// Search backs the /api/search endpoint. Required.
	Search *arxiv.Client

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// NewServer creates a dashboard server. It does not listen until Start.
func NewServer(config *Config) *Server {
	if config.Addr == "" {
		config.Addr = "localhost:8787"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:   config.Addr,
		facade: config.Facade,
		search: config.Search,
		conns:  make(map[*websocket.Conn]struct{}),
		events: make(chan Message, 100),
		ctx:    ctx,
		cancel: cancel,
		logger: config.Logger,
	}
}

// Start begins listening and wires the server to the facade's events.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.subscribeFacade()

	s.wg.Add(2)
	go s.fanOut()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("dashboard listening on %s", s.addr)
		if serveErr := s.httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Printf("dashboard serve: %v", serveErr)
		}
	}()

	return nil
}

// subscribeFacade forwards facade events into the event channel.
func (s *Server) subscribeFacade() {
	forwardSetting := func(ev syncpkg.Event) {
		s.enqueue(MessageTypeSettingUpdate, SettingUpdateData{Key: ev.Key, Value: ev.Value})
	}

	for _, key := range []string{"theme", "font", "defaultModel", "apiCredentials"} {
		s.unsubscribe = append(s.unsubscribe, s.facade.Subscribe(key, forwardSetting))
	}

	s.unsubscribe = append(s.unsubscribe, s.facade.Subscribe(syncpkg.KeyNotes, func(ev syncpkg.Event) {
		s.enqueue(MessageTypeNotesUpdate, NotesUpdateData{
			PaperID: ev.PaperID,
			Count:   len(ev.Notes),
			Notes:   ev.Notes,
		})
	}))
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("dashboard stopping")

	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.unsubscribe = nil

	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close(websocket.StatusGoingAway, "server stopping")
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}

	s.wg.Wait()
	return nil
}

// enqueue marshals data into a Message and hands it to Broadcast.
func (s *Server) enqueue(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("dashboard marshal %s: %v", typ, err)
		return
	}
	s.Broadcast(Message{Type: typ, Data: raw})
}

// Broadcast sends a message to all connected clients. A full queue drops
// the message rather than blocking the caller.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.events <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("dashboard event queue full, dropping message")
	}
}

// fanOut delivers queued messages to every connected client.
func (s *Server) fanOut() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.events:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("dashboard marshal frame: %v", err)
				continue
			}
			for _, conn := range s.snapshotConns() {
				if err := s.writeFrame(conn, frame); err != nil {
					s.logger.Printf("dashboard client write: %v", err)
					s.dropConn(conn)
				}
			}
		}
	}
}

func (s *Server) snapshotConns() []*websocket.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		out = append(out, conn)
	}
	return out
}

func (s *Server) writeFrame(conn *websocket.Conn, frame []byte) error {
	wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, frame)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("dashboard websocket accept: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	total := len(s.conns)
	s.mu.Unlock()
	s.logger.Printf("dashboard client connected, %d total", total)

	s.sendHello(conn)
	go s.readLoop(conn)
}

// sendHello pushes the current preference state to a new client so it
// can render without waiting for the next change event.
func (s *Server) sendHello(conn *websocket.Conn) {
	state := s.facade.State()
	data, _ := json.Marshal(map[string]any{
		"theme":        state.Theme,
		"font":         state.Font,
		"defaultModel": state.DefaultModel,
	})
	frame, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now(), Data: data})
	if err := s.writeFrame(conn, frame); err != nil {
		s.logger.Printf("dashboard hello: %v", err)
	}
}

// readLoop drains client frames so pings are answered and disconnects
// are noticed. Client messages are otherwise ignored.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.dropConn(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	_, present := s.conns[conn]
	delete(s.conns, conn)
	total := len(s.conns)
	s.mu.Unlock()

	if present {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("dashboard client disconnected, %d total", total)
	}
}

// handleSearch proxies a paper search. Query parameters: q (required),
// start, max_results.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, `{"error":"missing query parameter q"}`, http.StatusBadRequest)
		return
	}

	start := 0
	if v := r.URL.Query().Get("start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"invalid start"}`, http.StatusBadRequest)
			return
		}
		start = n
	}

	maxResults := arxiv.DefaultPageSize
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid max_results"}`, http.StatusBadRequest)
			return
		}
		maxResults = n
	}

	resp, err := s.search.Search(r.Context(), q, start, maxResults)
	if err != nil {
		s.logger.Printf("dashboard search: %v", err)
		http.Error(w, `{"error":"search failed"}`, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>marXiv</title>
</head>
<body>
    <h1>marXiv Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Search: <code>/api/search?q=...</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
