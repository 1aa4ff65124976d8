package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/operational", h.GetOperational)
	r.Post("/operational", h.SetOperational)

	r.Route("/airlines", func(r chi.Router) {
		r.Post("/", h.RegisterAirline)
		r.Post("/fund", h.FundAirline)
		r.Get("/{address}", h.GetAirline)
	})

	r.Route("/flights", func(r chi.Router) {
		r.Post("/", h.RegisterFlight)
		r.Get("/{airline}/{flight}/{timestamp}", h.GetFlight)
	})

	r.Post("/insurance", h.BuyInsurance)
	r.Get("/insurance/{airline}/{flight}/{timestamp}", h.GetCoverage)

	r.Get("/credits", h.GetCredit)
	r.Post("/credits/pay", h.PayCredit)

	r.Route("/oracles", func(r chi.Router) {
		r.Post("/", h.RegisterOracle)
		r.Get("/indexes", h.GetOracleIndexes)
		r.Post("/requests", h.FetchFlightStatus)
		r.Get("/requests/{index}/{airline}/{flight}/{timestamp}", h.GetOracleRequest)
		r.Post("/responses", h.SubmitOracleResponse)
	})

	r.Get("/wallets/{address}", h.GetWallet)

	if h.journal != nil {
		r.Route("/journal", func(r chi.Router) {
			r.Get("/events", h.ListEvents)
			r.Get("/flights/{airline}/{flight}/{timestamp}", h.GetJournaledStatus)
		})
	}

	return r
}
