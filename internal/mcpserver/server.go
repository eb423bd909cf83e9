// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes spendscope chart data as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/daywise"
	"github.com/starford/spendscope/internal/importer"
	"github.com/starford/spendscope/internal/storage"
	"github.com/starford/spendscope/internal/tree"
)

// ImportFileService is the importer surface the import tools need.
type ImportFileService interface {
	ImportFile(ctx context.Context, path string) (importer.Event, error)
	Sync(ctx context.Context) (importer.Summary, error)
}

// Server wraps the MCP server with spendscope tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *dashservice.Service
	imp   ImportFileService
	inbox storage.Provider
}

// New creates a new MCP server with all tools registered. The import tools
// are only registered when imp and inbox are both set.
func New(svc *dashservice.Service, imp ImportFileService, inbox storage.Provider) *Server {
	s := &Server{svc: svc, imp: imp, inbox: inbox}

	s.mcp = server.NewMCPServer(
		"spendscope",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	darkOpt := mcp.WithBoolean("dark", mcp.Description("Use the dark theme palette (server default when omitted)"))
	modeOpt := mcp.WithString("mode",
		mcp.Description("Series shape: net (default), split or running"),
		mcp.Enum(dashservice.ModeNet, dashservice.ModeSplit, dashservice.ModeRunning),
	)

	s.mcp.AddTool(mcp.NewTool("build_tree",
		mcp.WithDescription("Build a nested forest from flat records. Each record is "+
			`{"id","parent","name","color"}; a record whose parent is missing or unknown becomes a root. `+
			"Duplicate ids and parent cycles are rejected."),
		mcp.WithString("nodes", mcp.Required(), mcp.Description("JSON array of flat records")),
		darkOpt,
	), s.buildTree)

	s.mcp.AddTool(mcp.NewTool("expense_tree",
		mcp.WithDescription("Expense breakdown as root, year, month and category nodes."),
		mcp.WithNumber("year", mcp.Description("Restrict to one year (all years when omitted)")),
		darkOpt,
	), s.expenseTree)

	s.mcp.AddTool(mcp.NewTool("employee_tree",
		mcp.WithDescription("Organisation chart as root, department and reporting-line nodes."),
		darkOpt,
	), s.employeeTree)

	s.mcp.AddTool(mcp.NewTool("daywise_balance",
		mcp.WithDescription("Aggregate money records into a day-wise balance series of "+
			"[timestamp_ms, value] points. Dates are dd/mm/yyyy; malformed rows are listed as skipped."),
		mcp.WithString("records", mcp.Required(), mcp.Description(`JSON array of {"date","credit","debit"} records`)),
		modeOpt,
	), s.daywiseBalance)

	s.mcp.AddTool(mcp.NewTool("year_balance",
		mcp.WithDescription("Day-wise balance series of one year of stored transactions."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Calendar year")),
		modeOpt,
	), s.yearBalance)

	s.mcp.AddTool(mcp.NewTool("list_years",
		mcp.WithDescription("List the years that have stored transactions."),
	), s.listYears)

	s.mcp.AddTool(mcp.NewTool("get_import_contract",
		mcp.WithDescription("Returns the import document format. "+
			"Call this before importing documents to ensure correct structure."),
	), s.getImportContract)

	if imp != nil && inbox != nil {
		s.mcp.AddTool(mcp.NewTool("import_document",
			mcp.WithDescription("Store a JSON or YAML import document in the inbox and import it. "+
				"Pass either content or url (http, https or base64 data URI). "+
				"Read the format via get_import_contract or the spendscope://import-format resource first."),
			mcp.WithString("name", mcp.Description("Inbox file name ending in .json, .yaml or .yml")),
			mcp.WithString("content", mcp.Description("Document text")),
			mcp.WithString("url", mcp.Description("Location to fetch the document from")),
		), s.importDocument)

		s.mcp.AddTool(mcp.NewTool("sync_imports",
			mcp.WithDescription("Rescan the inbox, importing new and changed files and dropping removed ones."),
		), s.syncImports)
	}

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Import Format Contract",
			mcp.WithResourceDescription("Format of the JSON and YAML documents accepted by the inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// darkArg returns nil when the caller did not pick a theme.
func darkArg(req mcp.CallToolRequest) *bool {
	if _, ok := req.GetArguments()["dark"]; !ok {
		return nil
	}
	v := req.GetBool("dark", false)
	return &v
}

func (s *Server) buildTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("nodes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var nodes []tree.FlatNode
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid nodes: %v", err)), nil
	}
	forest, err := s.svc.BuildTree(nodes, darkArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(forest)
}

func (s *Server) expenseTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forest, err := s.svc.ExpenseTree(ctx, req.GetInt("year", 0), darkArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(forest)
}

func (s *Server) employeeTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forest, err := s.svc.EmployeeTree(ctx, darkArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(forest)
}

func (s *Server) daywiseBalance(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("records")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var records []daywise.MoneyRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid records: %v", err)), nil
	}
	b, err := s.svc.DaywiseFromRecords(records, req.GetString("mode", dashservice.ModeNet))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b)
}

func (s *Server) yearBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.svc.Balance(ctx, year, req.GetString("mode", dashservice.ModeNet))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(b)
}

func (s *Server) listYears(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	years, err := s.svc.Years(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if years == nil {
		years = []int{}
	}
	return jsonResult(years)
}

func (s *Server) syncImports(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.imp.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum)
}

func (s *Server) getImportContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}
