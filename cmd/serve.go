package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/payout"
	"github.com/myna-logistics/settlement-cli/internal/store"
)

// maxProofImageBytes bounds multipart uploads; matches the rail-side limit
// on proof attachments.
const maxProofImageBytes = 10 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the settlement HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSettlement(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newMux(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newMux wires the settlement API routes.
func newMux(env *settlementEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /settlements", func(w http.ResponseWriter, r *http.Request) {
		claim, err := claimFromMultipart(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		outcome, err := env.Orchestrator.Settle(r.Context(), *claim)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		status := http.StatusCreated
		if outcome.Status == model.StatusFailed {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, outcome)
	})

	mux.HandleFunc("GET /settlements", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.Filter{
			Status:          model.SettlementStatus(q.Get("status")),
			ShipmentID:      q.Get("shipment_id"),
			IncludeArchived: q.Get("archived") == "true",
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
			filter.Limit = limit
		}
		if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
			filter.Offset = offset
		}

		outcomes, err := env.Store.ListSettlements(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if outcomes == nil {
			outcomes = []model.SettlementOutcome{}
		}
		writeJSON(w, http.StatusOK, outcomes)
	})

	mux.HandleFunc("GET /settlements/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := env.Store.SettlementStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("GET /settlements/{id}", func(w http.ResponseWriter, r *http.Request) {
		outcome, err := env.Store.GetSettlement(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	mux.HandleFunc("DELETE /settlements/{id}", func(w http.ResponseWriter, r *http.Request) {
		// Archive only. The ledger record is immutable and stays untouched.
		if err := env.Store.ArchiveSettlement(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
	})

	mux.HandleFunc("GET /payouts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if env.Rail == nil {
			writeError(w, http.StatusServiceUnavailable, "payment rail credentials are not configured")
			return
		}
		result, err := payout.FetchStatus(r.Context(), env.Rail, r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return mux
}

// claimFromMultipart builds a DeliveryClaim from a multipart form with an
// "image" file part and the claim fields as form values.
func claimFromMultipart(r *http.Request) (*model.DeliveryClaim, error) {
	if err := r.ParseMultipartForm(maxProofImageBytes); err != nil {
		return nil, eris.Wrap(err, "parse multipart form")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, eris.Wrap(err, "image file is required")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxProofImageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read image")
	}

	claim := &model.DeliveryClaim{
		ShipmentID:     r.FormValue("shipment_id"),
		RecipientName:  r.FormValue("recipient_name"),
		RecipientPhone: r.FormValue("recipient_phone"),
		DeliveryNotes:  r.FormValue("notes"),
		Image:          image,
		ImageMIME:      header.Header.Get("Content-Type"),
	}

	if latStr, lonStr := r.FormValue("lat"), r.FormValue("lon"); latStr != "" && lonStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr == nil && lonErr == nil {
			claim.Location = &model.Geolocation{Lat: lat, Lon: lon}
		}
	}

	upi := r.FormValue("upi")
	bankAccount := r.FormValue("bank_account")
	if upi != "" || bankAccount != "" {
		amount, err := strconv.ParseInt(r.FormValue("amount_paise"), 10, 64)
		if err != nil {
			return nil, eris.Wrap(err, "bad amount_paise")
		}
		claim.Payee = &model.Payee{
			DriverID:    r.FormValue("driver_id"),
			Name:        r.FormValue("payee_name"),
			UPIAddress:  upi,
			BankAccount: bankAccount,
			IFSC:        r.FormValue("ifsc"),
		}
		claim.AmountPaise = amount
	}

	return claim, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
