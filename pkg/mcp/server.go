package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/foldgen/pkg/fixture"
	"github.com/denysvitali/foldgen/pkg/folding"
	"github.com/denysvitali/foldgen/pkg/telemetry"
)

// Server exposes fold computation and fixture writing as MCP tools
type Server struct {
	logger    *logrus.Logger
	computer  folding.Computer
	writer    *fixture.Writer
	mcpServer *server.MCPServer

	// editor sessions are single-user
	mu sync.Mutex
}

// NewServer creates a new MCP server using the mcp-go library
func NewServer(logger *logrus.Logger, computer folding.Computer) *Server {
	mcpServer := server.NewMCPServer(
		telemetry.ServiceName,
		telemetry.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		logger:    logger,
		computer:  computer,
		writer:    fixture.New(computer, logger),
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// ServeStdio serves MCP requests on stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	computeTool := mcp.NewTool("compute_folds",
		mcp.WithDescription("Compute the fold list of a source file. Returns one \"<start> <end> <level>\" record per line."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the source file"),
		),
	)
	s.mcpServer.AddTool(computeTool, s.handleComputeFolds)

	writeTool := mcp.NewTool("write_fixtures",
		mcp.WithDescription("Write <path>.testdata fold fixtures for each path, in order, stopping at the first failure"),
		mcp.WithString("paths",
			mcp.Required(),
			mcp.Description("Comma separated list of source file paths"),
		),
	)
	s.mcpServer.AddTool(writeTool, s.handleWriteFixtures)
}

func (s *Server) handleComputeFolds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path parameter error: %v", err)), nil
	}

	s.mu.Lock()
	folds, err := s.computer.Compute(ctx, path)
	s.mu.Unlock()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute folds: %v", err)), nil
	}

	s.logger.Debugf("Computed %d folds for %s", len(folds), path)
	return mcp.NewToolResultText(string(folding.Marshal(folds))), nil
}

func (s *Server) handleWriteFixtures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("paths")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths parameter error: %v", err)), nil
	}
	paths := splitPaths(raw)

	s.mu.Lock()
	written, err := s.writer.WriteEach(ctx, paths)
	s.mu.Unlock()

	report := "Wrote:\n"
	for _, out := range written {
		report += "- " + out + "\n"
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%sfailed: %v", report, err)), nil
	}
	return mcp.NewToolResultText(report), nil
}

func splitPaths(raw string) []string {
	var paths []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
