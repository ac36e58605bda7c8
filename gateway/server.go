package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rewardcenter/core/runtime"
	"rewardcenter/core/state"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/gateway/middleware"
	"rewardcenter/indexer"
)

const maxTransactionBytes = 256 << 10

// Config tunes the gateway.
type Config struct {
	RateLimit     middleware.RateLimit
	Auth          middleware.AuthConfig
	EnableMetrics bool
}

// Server exposes the ledger over HTTP: record reads, transaction submission,
// indexed event queries and a websocket stream of committed transactions.
type Server struct {
	exec    *runtime.Executor
	index   *indexer.Indexer
	logger  *slog.Logger
	cfg     Config
	handler http.Handler
}

// New builds the gateway. index may be nil, in which case the event query
// routes answer 503.
func New(exec *runtime.Executor, index *indexer.Indexer, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{exec: exec, index: index, logger: logger, cfg: cfg}
	s.handler = otelhttp.NewHandler(s.buildRouter(), "rewardcenter-gateway")
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Observe(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	limiter := middleware.NewRateLimiter(s.cfg.RateLimit, s.logger)
	auth := middleware.NewAuthenticator(s.cfg.Auth, s.logger)
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(limiter.Middleware)
		v1.Get("/head", s.getHead)
		v1.Get("/accounts/{address}", s.getAccount)
		v1.With(auth.Require(middleware.ScopeSubmit)).Post("/transactions", s.postTransaction)
		v1.Get("/events", s.getEvents)
		v1.Get("/events/ws", s.streamEvents)
		v1.Get("/reward-centers/{address}/totals", s.getTotals)
	})
	return r
}

type errorBody struct {
	Error     string `json:"error"`
	Code      uint32 `json:"code,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error(), RequestID: middleware.RequestIDFrom(r.Context())})
}

type headResponse struct {
	Root string `json:"root"`
	Seq  uint64 `json:"seq"`
}

func (s *Server) getHead(w http.ResponseWriter, r *http.Request) {
	head := s.exec.Head()
	writeJSON(w, http.StatusOK, headResponse{Root: head.Root.Hex(), Seq: head.Seq})
}

type accountResponse struct {
	Address string      `json:"address"`
	Record  string      `json:"record"`
	Data    interface{} `json:"data"`
	Raw     string      `json:"raw,omitempty"`
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	data, err := s.exec.AccountData(addr)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if len(data) == 0 {
		writeError(w, r, http.StatusNotFound, errors.New("account not found"))
		return
	}
	name, value, err := state.DecodeAccount(data)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	resp := accountResponse{Address: addr.String(), Record: name, Data: value}
	if r.URL.Query().Get("raw") == "1" {
		resp.Raw = hex.EncodeToString(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

type receiptResponse struct {
	TxHash    string              `json:"txHash"`
	Seq       uint64              `json:"seq"`
	StateRoot string              `json:"stateRoot"`
	Success   bool                `json:"success"`
	Events    []types.Event       `json:"events"`
	Error     *types.ReceiptError `json:"error,omitempty"`
}

func receiptFrom(receipt *types.Receipt) receiptResponse {
	events := receipt.Events
	if events == nil {
		events = []types.Event{}
	}
	return receiptResponse{
		TxHash:    receipt.TxHashHex(),
		Seq:       receipt.Seq,
		StateRoot: receipt.StateRootHex(),
		Success:   receipt.Success,
		Events:    events,
		Error:     receipt.Error,
	}
}

// postTransaction submits a signed transaction. Execution failures are
// reported in the receipt with status 200; malformed, unsigned or replayed
// transactions are rejected with a 4xx status.
func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	var tx types.Transaction
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransactionBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.exec.Submit(r.Context(), &tx)
	switch {
	case errors.Is(err, runtime.ErrDuplicateTransaction):
		writeError(w, r, http.StatusConflict, err)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if !receipt.Success {
		s.logger.Info("transaction rejected by program",
			"tx", receipt.TxHashHex(),
			"code", receipt.Error.Code,
			"requestId", middleware.RequestIDFrom(r.Context()))
	}
	writeJSON(w, http.StatusOK, receiptFrom(receipt))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("event index disabled"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	rows, err := s.index.Events(r.Context(), indexer.Query{
		Type:         q.Get("type"),
		RewardCenter: q.Get("rewardCenter"),
		Listing:      q.Get("listing"),
		Offer:        q.Get("offer"),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	type eventView struct {
		TxHash     string            `json:"txHash"`
		Seq        uint64            `json:"seq"`
		Position   int               `json:"position"`
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
		IndexedAt  time.Time         `json:"indexedAt"`
	}
	out := make([]eventView, 0, len(rows))
	for _, row := range rows {
		view := eventView{TxHash: row.TxHash, Seq: row.Seq, Position: row.Position, Type: row.Type, IndexedAt: row.CreatedAt}
		_ = json.Unmarshal([]byte(row.Attributes), &view.Attributes)
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTotals(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("event index disabled"))
		return
	}
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	totals, err := s.index.Totals(r.Context(), addr.String())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
