package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/logging"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/metrics"
	"github.com/FreePeak/pg-schema-mcp-server/internal/usecases"
)

// HeaderSessionID is the HTTP header carrying the session id on every
// request after Establish.
const HeaderSessionID = "Mcp-Session-Id"

const defaultNotificationBufferSize = 100

// StreamableHTTPServer serves the MCP streamable HTTP transport on a
// single endpoint path: POST carries JSON-RPC messages in, GET attaches
// the SSE push stream, DELETE tears the session down.
type StreamableHTTPServer struct {
	addr            string
	endpointPath    string
	bufferSize      int
	refreshInterval time.Duration

	service  *usecases.ServerService
	registry *SessionRegistry
	streamer *NotificationStreamer
	recorder *metrics.Recorder
	logger   *logging.Logger

	httpServer *http.Server
}

// Option configures the server.
type Option func(*StreamableHTTPServer)

// WithAddress sets the listen address.
func WithAddress(addr string) Option {
	return func(s *StreamableHTTPServer) { s.addr = addr }
}

// WithEndpointPath sets the transport endpoint path.
func WithEndpointPath(path string) Option {
	return func(s *StreamableHTTPServer) { s.endpointPath = path }
}

// WithNotificationBufferSize sets the per-session outbound queue size.
func WithNotificationBufferSize(n int) Option {
	return func(s *StreamableHTTPServer) { s.bufferSize = n }
}

// WithCatalogRefreshInterval sets the catalog rebuild period.
func WithCatalogRefreshInterval(d time.Duration) Option {
	return func(s *StreamableHTTPServer) { s.refreshInterval = d }
}

// WithRecorder attaches a metrics recorder and the /metrics endpoint.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *StreamableHTTPServer) { s.recorder = r }
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *StreamableHTTPServer) { s.logger = l }
}

// NewStreamableHTTPServer creates a streamable HTTP server around the
// given service, registry, and streamer.
func NewStreamableHTTPServer(
	service *usecases.ServerService,
	registry *SessionRegistry,
	streamer *NotificationStreamer,
	opts ...Option,
) *StreamableHTTPServer {
	s := &StreamableHTTPServer{
		addr:            ":8080",
		endpointPath:    "/mcp",
		bufferSize:      defaultNotificationBufferSize,
		refreshInterval: 5 * time.Second,
		service:         service,
		registry:        registry,
		streamer:        streamer,
		logger:          logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full HTTP handler: the transport endpoint plus
// the health and, when a recorder is attached, metrics endpoints.
func (s *StreamableHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.endpointPath, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if s.recorder != nil {
		mux.Handle("/metrics", s.recorder.Handler())
	}
	return mux
}

// ServeHTTP dispatches a request on the transport endpoint.
func (s *StreamableHTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		s.writeBadRequest(w)
	}
}

// Start runs the HTTP listener and the catalog refresher until the
// context is cancelled or the listener fails. It blocks.
func (s *StreamableHTTPServer) Start(ctx context.Context) error {
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	go s.refreshLoop(refreshCtx)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	s.logger.Info("server listening", logging.Fields{
		"addr":     s.addr,
		"endpoint": s.endpointPath,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the listener and closes every session.
func (s *StreamableHTTPServer) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.registry.CloseAll()
	return err
}

// refreshLoop rebuilds the catalog once at startup and then on every
// tick until the context is cancelled.
func (s *StreamableHTTPServer) refreshLoop(ctx context.Context) {
	if err := s.service.RefreshCatalog(ctx); err != nil {
		s.logger.Error("catalog refresh failed", logging.Fields{"error": err.Error()})
	}

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.service.RefreshCatalog(ctx); err != nil {
				s.logger.Error("catalog refresh failed", logging.Fields{"error": err.Error()})
			}
		}
	}
}

// handlePost carries JSON-RPC messages inbound. A request with a
// resolving session header continues that session; a request without a
// header establishes a session when its body contains an initialize
// call; everything else is a bad request.
func (s *StreamableHTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeBadRequest(w)
		return
	}

	if sessionID := r.Header.Get(HeaderSessionID); sessionID != "" {
		session, ok := s.registry.GetSession(sessionID)
		if !ok {
			s.writeBadRequest(w)
			return
		}
		s.processBody(r.Context(), w, session, body)
		return
	}

	messages, batch, err := parseBody(body)
	if err != nil || !containsInitialize(messages) {
		s.writeBadRequest(w)
		return
	}

	session := NewStreamSession(r.UserAgent(), s.bufferSize)
	if err := s.registry.RegisterSession(session); err != nil {
		s.logger.Error("session registration failed", logging.Fields{
			"sessionID": session.ID(),
			"error":     err.Error(),
		})
		s.writeJSON(w, http.StatusInternalServerError, shared.InternalErrorResponse(nil))
		return
	}
	if err := s.service.RegisterSession(r.Context(), session.ClientSession()); err != nil {
		s.logger.Warn("session record not stored", logging.Fields{
			"sessionID": session.ID(),
			"error":     err.Error(),
		})
	}
	s.logger.Info("session established", logging.Fields{
		"sessionID": session.ID(),
		"userAgent": session.ClientSession().UserAgent,
	})

	w.Header().Set(HeaderSessionID, session.ID())
	s.respond(r.Context(), w, session, messages, batch)
}

// processBody parses and answers the messages of a Continue POST.
func (s *StreamableHTTPServer) processBody(ctx context.Context, w http.ResponseWriter, session *StreamSession, body []byte) {
	messages, batch, err := parseBody(body)
	if err != nil {
		s.writeBadRequest(w)
		return
	}
	s.respond(ctx, w, session, messages, batch)
}

// respond runs every message through the session channel and writes the
// collected responses. A body holding only notifications is acknowledged
// with 202 and no content.
func (s *StreamableHTTPServer) respond(ctx context.Context, w http.ResponseWriter, session *StreamSession, messages []shared.JSONRPCMessage, batch bool) {
	var responses []shared.JSONRPCResponse
	status := http.StatusOK

	for _, msg := range messages {
		resp, msgStatus := s.handleMessage(ctx, session, msg)
		if resp != nil {
			responses = append(responses, *resp)
		}
		if msgStatus > status {
			status = msgStatus
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if batch {
		s.writeJSON(w, status, responses)
		return
	}
	s.writeJSON(w, status, responses[0])
}

// handleMessage processes one inbound message on a session channel and
// returns the response to write, if any, with the HTTP status it
// warrants. Panics are recovered into the generic internal-error
// envelope.
func (s *StreamableHTTPServer) handleMessage(ctx context.Context, session *StreamSession, msg shared.JSONRPCMessage) (resp *shared.JSONRPCResponse, status int) {
	status = http.StatusOK

	var id interface{}
	req, isRequest := msg.(shared.JSONRPCRequest)
	if isRequest {
		id = req.ID
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic during request handling", logging.Fields{
				"sessionID": session.ID(),
				"panic":     fmt.Sprintf("%v", rec),
			})
			errResp := shared.InternalErrorResponse(id)
			resp = &errResp
			status = http.StatusInternalServerError
		}
	}()

	if !isRequest {
		// Notifications are consumed without a reply; inbound
		// responses have no pending call to correlate with and are
		// dropped the same way.
		return nil, status
	}

	if !session.Initialized() && req.Method != shared.MethodInitialize {
		s.countRequest(req.Method, "rejected")
		errResp := shared.NewErrorResponse(req, shared.ServerError, "Bad Request: server not initialized.")
		return &errResp, status
	}

	switch req.Method {
	case shared.MethodInitialize:
		var params shared.InitializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				s.logger.Warn("malformed initialize params", logging.Fields{
					"sessionID": session.ID(),
					"error":     err.Error(),
				})
				s.countRequest(req.Method, "rejected")
				errResp := shared.NewErrorResponse(req, shared.ServerError, shared.BadRequestMessage)
				return &errResp, http.StatusBadRequest
			}
		}
		session.MarkInitialized()
		s.countRequest(req.Method, "ok")
		s.logger.Info("session initialized", logging.Fields{
			"sessionID":     session.ID(),
			"clientName":    params.ClientInfo.Name,
			"clientVersion": params.ClientInfo.Version,
		})
		result := shared.InitializeResult{
			ProtocolVersion: shared.ProtocolVersion,
			ServerInfo:      s.service.ServerInfo(),
			Capabilities:    s.service.Capabilities(),
		}
		r := shared.NewResponse(req, result)
		return &r, status

	case shared.MethodPing:
		s.countRequest(req.Method, "ok")
		r := shared.NewResponse(req, struct{}{})
		return &r, status

	case shared.MethodListTools:
		tools, err := s.service.ListTools(ctx)
		if err != nil {
			s.logger.Error("listing tools failed", logging.Fields{"error": err.Error()})
			s.countRequest(req.Method, "error")
			errResp := shared.InternalErrorResponse(req.ID)
			return &errResp, http.StatusInternalServerError
		}
		s.countRequest(req.Method, "ok")
		r := shared.NewResponse(req, shared.ListToolsResult{Tools: tools})
		return &r, status

	case shared.MethodCallTool:
		return s.handleCallTool(ctx, session, req)

	default:
		s.countRequest(req.Method, "not_found")
		errResp := shared.NewErrorResponse(req, shared.MethodNotFound, "Method not found")
		return &errResp, status
	}
}

// handleCallTool dispatches a tools/call request. Malformed params are a
// dispatch fault answered with the internal-error envelope; an unknown
// tool or a failing executor is reported inside a successful result so
// the client sees what went wrong.
func (s *StreamableHTTPServer) handleCallTool(ctx context.Context, session *StreamSession, req shared.JSONRPCRequest) (*shared.JSONRPCResponse, int) {
	params, verr := parseCallToolParams(req.Params)

	var args map[string]interface{}
	if verr == nil {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			verr = domain.NewValidationError("arguments", "must be a JSON object")
		}
	}
	if verr != nil {
		s.logger.Error("rejecting tools/call before dispatch", logging.Fields{
			"sessionID": session.ID(),
			"error":     verr.Error(),
		})
		s.countRequest(req.Method, "error")
		errResp := shared.InternalErrorResponse(req.ID)
		return &errResp, http.StatusInternalServerError
	}

	start := time.Now()
	content, err := s.service.CallTool(ctx, params.Name, args)
	if err != nil {
		var text string
		var toolNotFound *domain.ToolNotFoundError
		if errors.As(err, &toolNotFound) {
			text = fmt.Sprintf("Error: tool %q not found", params.Name)
		} else {
			text = fmt.Sprintf("Error executing tool %s: %v", params.Name, err)
		}
		s.logger.Warn("tool call failed", logging.Fields{
			"sessionID": session.ID(),
			"tool":      params.Name,
			"error":     err.Error(),
		})
		s.observeToolCall(params.Name, "error", start)
		s.countRequest(req.Method, "ok")
		r := shared.NewResponse(req, shared.CallToolResult{
			Content: []shared.Content{shared.NewTextContent(text)},
		})
		return &r, http.StatusOK
	}

	s.observeToolCall(params.Name, "ok", start)
	s.countRequest(req.Method, "ok")
	r := shared.NewResponse(req, shared.CallToolResult{Content: content})
	return &r, http.StatusOK
}

// handleGet attaches the SSE stream to a session and runs one bounded
// notification sequence on it. When the client disconnects or a write
// fails, the session is torn down.
func (s *StreamableHTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		s.writeBadRequest(w)
		return
	}
	session, ok := s.registry.GetSession(sessionID)
	if !ok {
		s.writeBadRequest(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("cannot attach stream", logging.Fields{
			"sessionID": sessionID,
			"error":     ErrResponseWriterNotFlusher.Error(),
		})
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	if !session.Attach() {
		s.logger.Warn("rejecting second stream on session", logging.Fields{
			"sessionID": sessionID,
		})
		s.writeJSON(w, http.StatusConflict, shared.JSONRPCResponse{
			JSONRPC: shared.JSONRPCVersion,
			Error: &shared.JSONRPCError{
				Code:    int(shared.ServerError),
				Message: "Bad Request: session already has an active stream.",
			},
		})
		return
	}
	defer session.Detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	runCtx, cancelRun := context.WithCancel(r.Context())
	defer cancelRun()
	go s.streamer.Run(runCtx, session)

	s.logger.Info("stream attached", logging.Fields{"sessionID": sessionID})

	for {
		select {
		case <-r.Context().Done():
			s.teardown(sessionID, "client disconnected")
			return
		case <-session.Done():
			return
		case msg := <-session.Messages():
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("marshalling outbound message failed", logging.Fields{
					"sessionID": sessionID,
					"error":     err.Error(),
				})
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				s.teardown(sessionID, "stream write failed")
				return
			}
			flusher.Flush()
		}
	}
}

// handleDelete tears a session down at the client's request.
func (s *StreamableHTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		s.writeBadRequest(w)
		return
	}
	if _, ok := s.registry.GetSession(sessionID); !ok {
		s.writeBadRequest(w)
		return
	}

	s.teardown(sessionID, "deleted by client")
	w.WriteHeader(http.StatusNoContent)
}

// teardown removes a session from the registry and the session store.
func (s *StreamableHTTPServer) teardown(sessionID, reason string) {
	closeFields := logging.Fields{
		"sessionID": sessionID,
		"reason":    reason,
	}
	if record, err := s.service.GetSession(context.Background(), sessionID); err == nil {
		closeFields["lifetime"] = time.Since(record.CreatedAt).String()
	}

	s.registry.UnregisterSession(sessionID)
	if err := s.service.UnregisterSession(context.Background(), sessionID); err != nil {
		var notFound *domain.SessionNotFoundError
		if !errors.As(err, &notFound) {
			s.logger.Warn("session record removal failed", logging.Fields{
				"sessionID": sessionID,
				"error":     err.Error(),
			})
		}
	}
	s.logger.Info("session closed", closeFields)
}

// parseCallToolParams validates the preconditions of a tools/call
// request before anything is dispatched: both name and arguments must
// be present.
func parseCallToolParams(raw json.RawMessage) (shared.CallToolParams, *domain.ValidationError) {
	var params shared.CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, domain.NewValidationError("params", "must be a JSON object")
	}
	if params.Name == "" {
		return params, domain.NewValidationError("name", "must not be empty")
	}
	if params.Arguments == nil {
		return params, domain.NewValidationError("arguments", "must be present")
	}
	return params, nil
}

func (s *StreamableHTTPServer) countRequest(method, status string) {
	if s.recorder != nil {
		s.recorder.RequestHandled(method, status)
	}
}

func (s *StreamableHTTPServer) observeToolCall(tool, status string, start time.Time) {
	if s.recorder != nil {
		s.recorder.ToolCallObserved(tool, status, time.Since(start))
	}
}

func (s *StreamableHTTPServer) writeBadRequest(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusBadRequest, shared.BadRequestResponse())
}

func (s *StreamableHTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response failed", logging.Fields{"error": err.Error()})
	}
}

// parseBody decodes a POST body into its messages, reporting whether it
// was a batch.
func parseBody(body []byte) ([]shared.JSONRPCMessage, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, true, err
		}
		if len(raws) == 0 {
			return nil, true, errors.New("empty batch")
		}
		messages := make([]shared.JSONRPCMessage, 0, len(raws))
		for _, raw := range raws {
			msg, err := shared.ParseMessage(raw)
			if err != nil {
				return nil, true, err
			}
			messages = append(messages, msg)
		}
		return messages, true, nil
	}

	msg, err := shared.ParseMessage(trimmed)
	if err != nil {
		return nil, false, err
	}
	return []shared.JSONRPCMessage{msg}, false, nil
}

// containsInitialize reports whether any message is an initialize
// request, the only payload allowed to establish a session.
func containsInitialize(messages []shared.JSONRPCMessage) bool {
	for _, msg := range messages {
		if req, ok := msg.(shared.JSONRPCRequest); ok && req.Method == shared.MethodInitialize {
			return true
		}
	}
	return false
}
