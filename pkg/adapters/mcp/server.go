package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/flow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// Orchestrator is the conversational core exposed as MCP tools.
type Orchestrator interface {
	Start(ctx context.Context, userID string, flow domain.Flow) flow.Reply
	Input(ctx context.Context, userID, text string) flow.Reply
	Cancel(ctx context.Context, userID string) flow.Reply
	Status(ctx context.Context, userID string) (*flow.Status, error)
	Portfolio(ctx context.Context, userID string, page int) flow.Reply
}

// Commands lists what start_flow accepts.
var Commands = []domain.Flow{
	domain.FlowBuy,
	domain.FlowSell,
	domain.FlowSlippage,
	domain.FlowConnect,
	domain.FlowSecurity,
	flow.CommandWallet,
	flow.CommandPortfolio,
	flow.CommandDisconnect,
	flow.CommandPrivateKey,
}

// StartArgs are the arguments of start_flow.
type StartArgs struct {
	UserID  string `mapstructure:"user_id"`
	Command string `mapstructure:"command"`
}

// InputArgs are the arguments of send_input.
type InputArgs struct {
	UserID string `mapstructure:"user_id"`
	Text   string `mapstructure:"text"`
}

// PageArgs are the arguments of portfolio_page.
type PageArgs struct {
	UserID string `mapstructure:"user_id"`
	Page   int    `mapstructure:"page"`
}

// UserArgs are the arguments of tools that only need a user.
type UserArgs struct {
	UserID string `mapstructure:"user_id"`
}

var errMissingUser = errors.New("user_id is required")

// Server wraps the Orchestrator and exposes it as an MCP Server.
type Server struct {
	orch      Orchestrator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(orch Orchestrator, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orch:      orch,
		logger:    logger,
		mcpServer: server.NewMCPServer("flashsol-mcp", strings.TrimSpace(version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	commands := make([]string, len(Commands))
	for i, c := range Commands {
		commands[i] = string(c)
	}

	s.mcpServer.AddTool(mcp.NewTool("start_flow",
		mcp.WithDescription("Start a command for a user, abandoning any flow in progress. The reply says what input is expected next."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Chat user id")),
		mcp.WithString("command", mcp.Required(), mcp.Enum(commands...), mcp.Description("Command to start")),
		mcp.WithOutputSchema[flow.Reply](),
	), mcp.NewStructuredToolHandler(s.handleStartFlow))

	s.mcpServer.AddTool(mcp.NewTool("send_input",
		mcp.WithDescription("Send one line of user input (an address, amount, choice value or passkey) to the pending flow."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Chat user id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("User input")),
		mcp.WithOutputSchema[flow.Reply](),
	), mcp.NewStructuredToolHandler(s.handleSendInput))

	s.mcpServer.AddTool(mcp.NewTool("cancel_flow",
		mcp.WithDescription("Abandon the user's pending flow and passkey entry."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Chat user id")),
		mcp.WithOutputSchema[flow.Reply](),
	), mcp.NewStructuredToolHandler(s.handleCancelFlow))

	s.mcpServer.AddTool(mcp.NewTool("portfolio_page",
		mcp.WithDescription("List one page of the user's token holdings, ten per page."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Chat user id")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithOutputSchema[flow.Reply](),
	), mcp.NewStructuredToolHandler(s.handlePortfolioPage))

	s.mcpServer.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Inspect the user's pending flow, lock and secure session."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Chat user id")),
		mcp.WithOutputSchema[flow.Status](),
	), mcp.NewStructuredToolHandler(s.handleSessionStatus))
}

func (s *Server) handleStartFlow(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (flow.Reply, error) {
	var in StartArgs
	if err := decodeArgs(args, &in); err != nil {
		return flow.Reply{}, err
	}
	if in.Command == "" {
		return flow.Reply{}, errors.New("command is required")
	}
	s.logger.Debug("MCP start_flow", "user_id", in.UserID, "command", in.Command)
	return s.orch.Start(ctx, in.UserID, domain.Flow(in.Command)), nil
}

func (s *Server) handleSendInput(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (flow.Reply, error) {
	var in InputArgs
	if err := decodeArgs(args, &in); err != nil {
		return flow.Reply{}, err
	}
	return s.orch.Input(ctx, in.UserID, in.Text), nil
}

func (s *Server) handleCancelFlow(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (flow.Reply, error) {
	var in UserArgs
	if err := decodeArgs(args, &in); err != nil {
		return flow.Reply{}, err
	}
	return s.orch.Cancel(ctx, in.UserID), nil
}

func (s *Server) handlePortfolioPage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (flow.Reply, error) {
	var in PageArgs
	if err := decodeArgs(args, &in); err != nil {
		return flow.Reply{}, err
	}
	if in.Page < 1 {
		in.Page = 1
	}
	return s.orch.Portfolio(ctx, in.UserID, in.Page), nil
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (flow.Status, error) {
	var in UserArgs
	if err := decodeArgs(args, &in); err != nil {
		return flow.Status{}, err
	}
	status, err := s.orch.Status(ctx, in.UserID)
	if err != nil {
		return flow.Status{}, fmt.Errorf("status failed: %w", err)
	}
	return *status, nil
}

// decodeArgs fills out from tool arguments. Numeric user ids, as some
// clients send them, are accepted.
func decodeArgs(args map[string]interface{}, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	var userID string
	switch v := out.(type) {
	case *StartArgs:
		userID = v.UserID
	case *InputArgs:
		userID = v.UserID
	case *PageArgs:
		userID = v.UserID
	case *UserArgs:
		userID = v.UserID
	}
	if strings.TrimSpace(userID) == "" {
		return errMissingUser
	}
	return nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("flashsol://commands", "Available commands",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names := make([]string, len(Commands))
		for i, c := range Commands {
			names[i] = string(c)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "flashsol://commands",
				MIMEType: "text/plain",
				Text:     strings.Join(names, "\n"),
			},
		}, nil
	})
}
