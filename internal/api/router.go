package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/spendscope/internal/dashservice"
	"github.com/starford/spendscope/internal/sse"
	"github.com/starford/spendscope/internal/storage"
)

// ChangeNotifier is told about data ingested through the API.
type ChangeNotifier func(sse.Change)

// Deps bundles the collaborators mounted by NewRouter. Importer, Notify and
// Events are optional.
type Deps struct {
	Service  *dashservice.Service
	Importer ImportService
	Inbox    storage.Provider
	Notify   ChangeNotifier
	Events   http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d.Service, d.Notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Trees.
	r.Get("/trees/expenses", h.ExpenseTree)
	r.Get("/trees/employees", h.EmployeeTree)
	r.Post("/trees/build", h.BuildTree)

	// Day-wise balances.
	r.Get("/balance/daywise", h.Daywise)
	r.Post("/balance/daywise", h.DaywiseFromRecords)
	r.Get("/balance/daywise/export", h.ExportDaywise)

	// Stored data.
	r.Get("/years", h.Years)
	r.Get("/transactions/month", h.MonthRecords)
	r.Post("/transactions", h.IngestTransactions)
	r.Post("/employees", h.IngestEmployees)

	// Inbox imports.
	if d.Importer != nil && d.Inbox != nil {
		ih := NewImportHandler(d.Importer, d.Inbox)
		r.Get("/imports", ih.List)
		r.Post("/imports", ih.Upload)
		r.Post("/imports/sync", ih.Sync)
		r.Delete("/imports/*", ih.Delete)
	}

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
