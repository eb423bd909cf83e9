package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/export"
	"github.com/starford/spendscope/internal/parser"
	"github.com/starford/spendscope/internal/sse"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Handler holds API route handlers.
type Handler struct {
	svc    *dashservice.Service
	notify ChangeNotifier
}

// NewHandler creates a new Handler. notify may be nil.
func NewHandler(svc *dashservice.Service, notify ChangeNotifier) *Handler {
	if notify == nil {
		notify = func(sse.Change) {}
	}
	return &Handler{svc: svc, notify: notify}
}

// darkParam reads the optional "dark" query flag. A nil result means the
// server default theme.
func darkParam(r *http.Request) (*bool, error) {
	raw := r.URL.Query().Get("dark")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid dark flag %q", raw)
	}
	return &v, nil
}

// intParam reads an integer query parameter, returning def when it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func modeParam(r *http.Request) string {
	if m := r.URL.Query().Get("mode"); m != "" {
		return m
	}
	return dashservice.ModeNet
}

// ExpenseTree handles GET /api/trees/expenses.
//
//	@Summary		Expense breakdown as a year, month and category forest
//	@Tags			trees
//	@Produce		json
//	@Param			year	query		int		false	"Restrict to one year"
//	@Param			dark	query		bool	false	"Dark theme palette"
//	@Success		200		{array}		TreeNode
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/expenses [get]
func (h *Handler) ExpenseTree(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	dark, err := darkParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	forest, err := h.svc.ExpenseTree(r.Context(), year, dark)
	if err != nil {
		writeError(w, "expense tree", err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

// EmployeeTree handles GET /api/trees/employees.
//
//	@Summary		Organisation chart as a department and reporting-line forest
//	@Tags			trees
//	@Produce		json
//	@Param			dark	query		bool	false	"Dark theme palette"
//	@Success		200		{array}		TreeNode
//	@Security		BearerAuth
//	@Router			/trees/employees [get]
func (h *Handler) EmployeeTree(w http.ResponseWriter, r *http.Request) {
	dark, err := darkParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	forest, err := h.svc.EmployeeTree(r.Context(), dark)
	if err != nil {
		writeError(w, "employee tree", err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

// BuildTree handles POST /api/trees/build.
//
//	@Summary		Build a forest from flat parent-referencing records
//	@Tags			trees
//	@Accept			json
//	@Produce		json
//	@Param			dark	query		bool		false	"Dark theme palette"
//	@Param			body	body		[]FlatNode	true	"Flat records"
//	@Success		200		{array}		TreeNode
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	structureResponse
//	@Security		BearerAuth
//	@Router			/trees/build [post]
func (h *Handler) BuildTree(w http.ResponseWriter, r *http.Request) {
	dark, err := darkParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var nodes []FlatNode
	if err := decodeBody(w, r, &nodes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	forest, err := h.svc.BuildTree(nodes, dark)
	if err != nil {
		writeError(w, "build tree", err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

// Daywise handles GET /api/balance/daywise.
//
//	@Summary		Day-wise balance series for one year of stored records
//	@Tags			balance
//	@Produce		json
//	@Param			year	query		int		false	"Year (defaults to the current year)"
//	@Param			mode	query		string	false	"Series shape"	Enums(net, split, running)
//	@Success		200		{object}	BalanceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/balance/daywise [get]
func (h *Handler) Daywise(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.svc.CurrentYear())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	b, err := h.svc.Balance(r.Context(), year, modeParam(r))
	if err != nil {
		writeError(w, "daywise balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DaywiseFromRecords handles POST /api/balance/daywise.
//
//	@Summary		Day-wise balance series for posted records
//	@Tags			balance
//	@Accept			json
//	@Produce		json
//	@Param			mode	query		string			false	"Series shape"	Enums(net, split, running)
//	@Param			body	body		[]MoneyRecord	true	"Records with dd/mm/yyyy dates"
//	@Success		200		{object}	BalanceResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/balance/daywise [post]
func (h *Handler) DaywiseFromRecords(w http.ResponseWriter, r *http.Request) {
	var records []MoneyRecord
	if err := decodeBody(w, r, &records); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	b, err := h.svc.DaywiseFromRecords(records, modeParam(r))
	if err != nil {
		writeError(w, "daywise balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ExportDaywise handles GET /api/balance/daywise/export.
//
//	@Summary		Day-wise balance workbook for one year
//	@Tags			balance
//	@Produce		application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//	@Param			year	query	int	false	"Year (defaults to the current year)"
//	@Success		200		{file}	binary
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/balance/daywise/export [get]
func (h *Handler) ExportDaywise(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.svc.CurrentYear())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportBalance(r.Context(), year, &buf); err != nil {
		writeError(w, "export balance", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="balance-%d.xlsx"`, year))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("export write failed", slog.String("error", err.Error()))
	}
}

// Years handles GET /api/years.
//
//	@Summary		Years with stored transactions
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	YearsResponse
//	@Security		BearerAuth
//	@Router			/years [get]
func (h *Handler) Years(w http.ResponseWriter, r *http.Request) {
	years, err := h.svc.Years(r.Context())
	if err != nil {
		writeError(w, "list years", err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, YearsResponse{Years: years})
}

// MonthRecords handles GET /api/transactions/month.
//
//	@Summary		One month of records in the analytics contract shape
//	@Tags			data
//	@Produce		json
//	@Param			year	query		int	true	"Year"
//	@Param			month	query		int	true	"Month (1-12)"
//	@Success		200		{array}		MoneyRecord
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions/month [get]
func (h *Handler) MonthRecords(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", 0)
	if err != nil || year == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("year is required"))
		return
	}
	month, err := intParam(r, "month", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	records, err := h.svc.MonthRecords(r.Context(), year, month)
	if err != nil {
		writeError(w, "month records", err)
		return
	}
	if records == nil {
		records = []MoneyRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// IngestTransactions handles POST /api/transactions.
//
//	@Summary		Store transactions
//	@Description	Accepts a bare array of transactions or a {"kind":"transactions"} document.
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	IngestResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transactions [post]
func (h *Handler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r, parser.KindTransactions)
	if !ok {
		return
	}
	n, err := h.svc.ImportTransactions(r.Context(), doc.Transactions)
	if err != nil {
		writeError(w, "ingest transactions", err)
		return
	}
	h.notify(sse.Change{Type: sse.TypeTransactionsImported, Rows: n})
	writeJSON(w, http.StatusCreated, IngestResponse{Rows: n})
}

// IngestEmployees handles POST /api/employees.
//
//	@Summary		Create or update employees
//	@Description	Accepts a bare array of employees or a {"kind":"employees"} document.
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	IngestResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/employees [post]
func (h *Handler) IngestEmployees(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r, parser.KindEmployees)
	if !ok {
		return
	}
	n, err := h.svc.ImportEmployees(r.Context(), doc.Employees)
	if err != nil {
		writeError(w, "ingest employees", err)
		return
	}
	h.notify(sse.Change{Type: sse.TypeEmployeesImported, Rows: n})
	writeJSON(w, http.StatusCreated, IngestResponse{Rows: n})
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request, kind string) (*parser.Document, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("request body too large"))
		return nil, false
	}
	doc, err := parser.DecodeJSON(kind, data)
	if err != nil {
		writeError(w, "decode "+kind, err)
		return nil, false
	}
	return doc, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
