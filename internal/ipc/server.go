package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/tuck/internal/config"
	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/runtimepath"
)

// ServerOptions adjust a Server. Zero values use the runtime socket path,
// config.Load and slog.Default.
type ServerOptions struct {
	SocketPath string
	LoadConfig func() (*config.Config, error)
	Logger     *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	cfg          *config.Config
	cfgMu        sync.RWMutex
	mgr          *manager.Manager
	loadConfig   func() (*config.Config, error)
	logger       *slog.Logger
	startTime    time.Time
	reloadChan   chan<- struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	conns        sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(cfg *config.Config, mgr *manager.Manager, reloadChan chan<- struct{}, opts ServerOptions) (*Server, error) {
	socketPath := opts.SocketPath
	if socketPath == "" {
		p, err := runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
		socketPath = p
	}
	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = config.Load
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		cfg:        cfg,
		mgr:        mgr,
		loadConfig: loadConfig,
		logger:     logger.With("component", "ipc"),
		startTime:  time.Now(),
		reloadChan: reloadChan,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single request/response exchange.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Debug("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err), CodeInvalidRequest))
		return
	}

	start := time.Now()
	resp := s.handleCommand(s.ctx, req)
	resp.ID = req.ID
	s.logger.Debug("IPC request handled",
		"id", req.ID, "command", string(req.Command), "status", resp.Status, "code", resp.Code,
		"elapsed", time.Since(start))

	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Debug("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus(ctx)
	case CommandListItems:
		return s.handleListItems(ctx, req.Payload)
	case CommandMoveItem:
		return s.handleMoveItem(ctx, req.Payload)
	case CommandClickItem:
		return s.handleClickItem(ctx, req.Payload)
	case CommandRecover:
		return s.handleRecover(ctx, req.Payload)
	case CommandScroll:
		return ok(s.mgr.Scroll(ctx))
	case CommandHardReset:
		return s.handleHardReset(ctx)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command), CodeInvalidRequest)
	}
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error(), CodeInternal)
	}
	return resp
}

func fail(action string, err error) *Response {
	return NewErrorResponse(fmt.Sprintf("%s: %v", action, err), CodeFor(err))
}

func decode(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// handleReload reloads the configuration and hands it to the daemon.
func (s *Server) handleReload() *Response {
	s.logger.Info("IPC: received RELOAD command")

	newCfg, err := s.loadConfig()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err), CodeInvalidRequest)
	}

	s.cfgMu.Lock()
	s.cfg = newCfg
	s.cfgMu.Unlock()

	// Notify the main daemon via channel (non-blocking)
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}

	s.logger.Info("IPC: config reloaded")
	return ok(nil)
}

func (s *Server) handleGetStatus(ctx context.Context) *Response {
	st, err := s.mgr.Status(ctx)
	if err != nil {
		return fail("Failed to get status", err)
	}
	return ok(StatusData{
		Status:        st,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
	})
}

func (s *Server) handleListItems(ctx context.Context, payload json.RawMessage) *Response {
	var req ListItemsPayload
	if err := decode(payload, &req); err != nil {
		return fail("Invalid list payload", err)
	}
	if err := s.mgr.Refresh(ctx, req.Refresh); err != nil && !errors.Is(err, menubar.ErrProviderTimeout) {
		return fail("Failed to list items", err)
	}
	return ok(ListItems(s.mgr))
}

// ListItems builds the LIST_ITEMS view of the manager's current snapshot.
func ListItems(mgr *manager.Manager) ItemsData {
	expected := mgr.ExpectedHidden()
	snap := mgr.Cache().Snapshot()
	data := ItemsData{Items: []ItemInfo{}, Missing: []ItemRef{}}
	for _, r := range []menubar.Region{menubar.RegionAlwaysHidden, menubar.RegionHidden, menubar.RegionVisible} {
		for _, it := range snap.Regions[r] {
			data.Items = append(data.Items, ItemInfo{
				Owner:    it.Key().Owner,
				Title:    it.Title,
				Kind:     it.Kind.String(),
				PID:      it.OwnerPID,
				WindowID: uint32(it.WindowID),
				Region:   r.String(),
				X:        it.Frame.X,
				Width:    it.Width(),
				Expected: expected.Has(it.Key()),
			})
		}
	}
	for _, k := range mgr.Missing() {
		data.Missing = append(data.Missing, RefForKey(k))
	}
	return data
}

func (s *Server) handleMoveItem(ctx context.Context, payload json.RawMessage) *Response {
	var req MoveItemPayload
	if err := decode(payload, &req); err != nil {
		return fail("Invalid move payload", err)
	}
	key, err := s.mgr.Resolve(ctx, req.Item.Owner, req.Item.Title)
	if err != nil {
		return fail("Failed to resolve item", err)
	}

	var res manager.MoveResult
	switch {
	case req.Anchor != nil:
		side, err := menubar.ParseSide(req.Side)
		if err != nil {
			return fail("Invalid side", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		}
		anchor, err := s.mgr.Resolve(ctx, req.Anchor.Owner, req.Anchor.Title)
		if err != nil {
			return fail("Failed to resolve anchor", err)
		}
		res, err = s.mgr.Move(ctx, key, manager.Target{Anchor: anchor, Side: side})
		if err != nil {
			return fail("Failed to move item", err)
		}
	case req.To != "":
		region, err := menubar.ParseRegion(req.To)
		if err != nil {
			return fail("Invalid region", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		}
		res, err = s.mgr.MoveToRegion(ctx, key, region)
		if err != nil {
			return fail("Failed to move item", err)
		}
	default:
		return NewErrorResponse("either to or anchor is required", CodeInvalidRequest)
	}

	return ok(MoveData{
		Item:     RefForKey(res.Item.Key()),
		From:     res.From.String(),
		To:       res.To.String(),
		Attempts: res.Attempts,
	})
}

func (s *Server) handleClickItem(ctx context.Context, payload json.RawMessage) *Response {
	var req ClickItemPayload
	if err := decode(payload, &req); err != nil {
		return fail("Invalid click payload", err)
	}
	button, valid := platform.ParseButton(req.Button)
	if !valid {
		return NewErrorResponse(fmt.Sprintf("Unknown button: %s", req.Button), CodeInvalidRequest)
	}
	key, err := s.mgr.Resolve(ctx, req.Item.Owner, req.Item.Title)
	if err != nil {
		return fail("Failed to resolve item", err)
	}
	res, err := s.mgr.Click(ctx, key, button)
	if err != nil {
		return fail("Failed to click item", err)
	}
	data := ClickData{Item: RefForKey(key), MenuOpened: res.MenuOpened}
	if res.Menu != nil {
		data.MenuWindow = uint32(res.Menu.ID)
	}
	return ok(data)
}

func (s *Server) handleRecover(ctx context.Context, payload json.RawMessage) *Response {
	var req RecoverPayload
	if err := decode(payload, &req); err != nil {
		return fail("Invalid recover payload", err)
	}
	if req.Limit < 0 {
		return NewErrorResponse("limit must be >= 0", CodeInvalidRequest)
	}
	return ok(s.mgr.Recover(ctx, req.Limit))
}

func (s *Server) handleHardReset(ctx context.Context) *Response {
	n, err := s.mgr.HardReset(ctx)
	if err != nil {
		return fail("Failed to reset", err)
	}
	return ok(HardResetData{Hidden: n})
}

// Stop gracefully shuts down the IPC server, cancelling in-flight requests.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	os.Remove(s.socketPath)
}

// GetConfig returns the current config (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig updates the config (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}
