package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/importer"
	"github.com/starford/spendscope/internal/store"
	"github.com/starford/spendscope/internal/testutil"
	"github.com/starford/spendscope/internal/tree"
)

var _ ImportFileService = (*importer.Importer)(nil)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()

	db := testutil.TestDB(t)
	_, inbox := testutil.TestInbox(t)
	logger := testutil.Logger()

	svc := dashservice.NewService(db, nil, logger, dashservice.Options{Location: time.UTC})
	return New(svc, importer.New(db, inbox, logger), inbox), db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "build_tree":
		result, err = srv.buildTree(ctx, req)
	case "expense_tree":
		result, err = srv.expenseTree(ctx, req)
	case "employee_tree":
		result, err = srv.employeeTree(ctx, req)
	case "daywise_balance":
		result, err = srv.daywiseBalance(ctx, req)
	case "year_balance":
		result, err = srv.yearBalance(ctx, req)
	case "list_years":
		result, err = srv.listYears(ctx, req)
	case "import_document":
		result, err = srv.importDocument(ctx, req)
	case "sync_imports":
		result, err = srv.syncImports(ctx, req)
	case "get_import_contract":
		result, err = srv.getImportContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestBuildTree(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "build_tree", map[string]any{
		"nodes": `[{"id":"root","name":"All"},{"id":"a","parent":"root","name":"A"}]`,
		"dark":  true,
	})
	if r.IsError {
		t.Fatalf("build_tree error: %s", resultText(r))
	}
	var forest []tree.TreeNode
	if err := json.Unmarshal([]byte(resultText(r)), &forest); err != nil {
		t.Fatal(err)
	}
	if len(forest) != 1 || len(forest[0].Children) != 1 {
		t.Fatalf("forest = %+v", forest)
	}
	if forest[0].SymbolColor != tree.DarkPalette.Root {
		t.Errorf("root color = %q, want dark palette", forest[0].SymbolColor)
	}
}

func TestBuildTree_Cycle(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "build_tree", map[string]any{
		"nodes": `[{"id":"a","parent":"a"}]`,
	})
	if !r.IsError || !strings.Contains(resultText(r), "cycle") {
		t.Errorf("result = %q, want cycle error", resultText(r))
	}
}

func TestBuildTree_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "build_tree", map[string]any{"nodes": "{"}); !r.IsError {
		t.Error("expected error for invalid nodes")
	}
	if r := callTool(t, srv, "build_tree", map[string]any{}); !r.IsError {
		t.Error("expected error for missing nodes")
	}
}

func TestDaywiseBalance(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "daywise_balance", map[string]any{
		"records": `[{"date":"01/01/2025","credit":10,"debit":4},{"date":"x"}]`,
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var resp struct {
		Mode    string           `json:"mode"`
		Points  [][2]json.Number `json:"points"`
		Skipped []map[string]any `json:"skipped"`
	}
	_ = json.Unmarshal([]byte(resultText(r)), &resp)
	if resp.Mode != "net" || len(resp.Points) != 1 || resp.Points[0][1] != "6" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Skipped) != 1 {
		t.Errorf("skipped = %+v", resp.Skipped)
	}

	r = callTool(t, srv, "daywise_balance", map[string]any{"records": `[]`, "mode": "hourly"})
	if !r.IsError {
		t.Error("expected error for unknown mode")
	}
}

func TestStoredTrees(t *testing.T) {
	srv, db := testServer(t)
	testutil.Seed(t, db)

	r := callTool(t, srv, "expense_tree", map[string]any{"year": 2024})
	var forest []tree.TreeNode
	_ = json.Unmarshal([]byte(resultText(r)), &forest)
	if len(forest) != 1 || len(forest[0].Children) != 1 || forest[0].Children[0].ID != "2024" {
		t.Errorf("expense tree = %s", resultText(r))
	}

	r = callTool(t, srv, "employee_tree", map[string]any{})
	forest = nil
	_ = json.Unmarshal([]byte(resultText(r)), &forest)
	if len(forest) != 1 || tree.Count(toPointers(forest)) != 6 {
		t.Errorf("employee tree = %s", resultText(r))
	}

	r = callTool(t, srv, "list_years", map[string]any{})
	if got := strings.Join(strings.Fields(resultText(r)), ""); got != "[2024,2025]" && got != "[2025,2024]" {
		t.Errorf("years = %s", resultText(r))
	}
}

func toPointers(nodes []tree.TreeNode) []*tree.TreeNode {
	out := make([]*tree.TreeNode, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

func TestYearBalance(t *testing.T) {
	srv, db := testServer(t)
	testutil.Seed(t, db)

	r := callTool(t, srv, "year_balance", map[string]any{"year": 2025, "mode": "split"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var b dashservice.Balance
	if err := json.Unmarshal([]byte(resultText(r)), &b); err != nil {
		t.Fatal(err)
	}
	if b.Year != 2025 || len(b.Credit) != 3 || len(b.Debit) != 3 {
		t.Errorf("balance = %+v", b)
	}

	if r := callTool(t, srv, "year_balance", map[string]any{}); !r.IsError {
		t.Error("expected error for missing year")
	}
}

func TestImportDocument_Content(t *testing.T) {
	srv, db := testServer(t)

	doc := "kind: employees\nemployees:\n  - id: \"1\"\n    name: Ada\n    department: Eng\n"
	r := callTool(t, srv, "import_document", map[string]any{"name": "staff.yaml", "content": doc})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var res importResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if res.Status != "imported" || res.Kind != "employees" || res.Rows != 1 {
		t.Errorf("result = %+v", res)
	}

	emps, err := db.Employees(context.Background())
	if err != nil || len(emps) != 1 {
		t.Fatalf("employees = %+v, err = %v", emps, err)
	}

	r = callTool(t, srv, "import_document", map[string]any{"name": "staff.yaml", "content": doc})
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if res.Status != "unchanged" {
		t.Errorf("re-import status = %q", res.Status)
	}
}

func TestImportDocument_DataURI(t *testing.T) {
	srv, db := testServer(t)

	payload := base64.StdEncoding.EncodeToString([]byte(`[{"date":"03/02/2025","category":"Fuel","debit":"40"}]`))
	r := callTool(t, srv, "import_document", map[string]any{"url": "data:application/json;base64," + payload})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var res importResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if !strings.HasSuffix(res.Path, ".json") || res.Rows != 1 {
		t.Errorf("result = %+v", res)
	}

	records, err := db.MonthRecords(context.Background(), 2025, 2)
	if err != nil || len(records) != 1 {
		t.Errorf("records = %+v, err = %v", records, err)
	}
}

func TestImportDocument_Fetch(t *testing.T) {
	srv, _ := testServer(t)

	orig := fetchFunc
	t.Cleanup(func() { fetchFunc = orig })
	fetchFunc = func(_ context.Context, rawURL string) ([]byte, string, error) {
		if rawURL != "https://example.com/exports/march.json" {
			t.Errorf("url = %q", rawURL)
		}
		return []byte(`[{"date":"2025-03-01","credit":5}]`), ".json", nil
	}

	r := callTool(t, srv, "import_document", map[string]any{"url": "https://example.com/exports/march.json"})
	var res importResult
	_ = json.Unmarshal([]byte(resultText(r)), &res)
	if r.IsError || res.Path != "march.json" {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestImportDocument_Invalid(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"nothing", map[string]any{}},
		{"both", map[string]any{"content": "[]", "url": "https://example.com/a.json", "name": "a.json"}},
		{"content without name", map[string]any{"content": "[]"}},
		{"bad extension", map[string]any{"name": "notes.txt", "content": "[]"}},
		{"bad document", map[string]any{"name": "bad.json", "content": `{"kind":"invoices"}`}},
		{"plain data uri", map[string]any{"url": "data:application/json,[]"}},
		{"unknown mime", map[string]any{"url": "data:image/png;base64,AAAA"}},
		{"loopback", map[string]any{"url": "http://127.0.0.1/a.json"}},
		{"file scheme", map[string]any{"url": "file:///etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, "import_document", tt.args); !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
}

func TestSyncImports(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "sync_imports", map[string]any{})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var sum importer.Summary
	_ = json.Unmarshal([]byte(resultText(r)), &sum)
	if sum != (importer.Summary{}) {
		t.Errorf("summary = %+v", sum)
	}
}

func TestImportContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_import_contract", map[string]any{})
	if !strings.Contains(resultText(r), "kind: transactions") {
		t.Error("contract should document the transactions kind")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd.json": "passwd.json",
		".hidden.yaml":          "hidden.yaml",
		"my report (1).yml":     "my_report__1_.yml",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
