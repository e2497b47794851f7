package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maybehotcarl/nftbot/pkg/ledger"
)

// WalletReader looks up stored wallet records.
type WalletReader interface {
	Get(ctx context.Context, address string) (ledger.WalletRecord, error)
}

// Server is the read-only status API.
type Server struct {
	addr    string
	wallets WalletReader
	log     *zap.Logger
	mux     *http.ServeMux
}

// New creates a status server listening on addr.
func New(addr string, wallets WalletReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:    addr,
		wallets: wallets,
		log:     logger.Named("server"),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /wallets/{address}", s.handleWallet)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Handlers ---

// GET /health -- simple health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// GET /wallets/{address} -- last recorded membership of a wallet
//
// Response: { "id": 1, "wallet_address": "...", "has_nft": true }
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	rec, err := s.wallets.Get(r.Context(), address)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "wallet not found")
		return
	}
	if err != nil {
		s.log.Error("wallet lookup failed", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read wallet")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
