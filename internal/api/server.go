package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"BundleHub-Chain/internal/bundle"
	xerrors "BundleHub-Chain/internal/errors"
	"BundleHub-Chain/internal/history"
	"BundleHub-Chain/internal/invest"
	"BundleHub-Chain/internal/observability/metrics"
)

// Server 负责暴露 REST 接口，供外部驱动投资编排器。
type Server struct {
	addr    string
	service *invest.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *invest.Service) *Server {
	return &Server{addr: addr, service: service}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bundles", s.instrument("bundles", s.handleBundles))
	mux.HandleFunc("/api/v1/bundles/", s.instrument("bundle", s.handleBundle))
	mux.HandleFunc("/api/v1/invest/preview", s.instrument("invest_preview", s.handleInvestPreview))
	mux.HandleFunc("/api/v1/invest", s.instrument("invest", s.handleInvest))
	mux.HandleFunc("/api/v1/redeem/preview", s.instrument("redeem_preview", s.handleRedeemPreview))
	mux.HandleFunc("/api/v1/redeem", s.instrument("redeem", s.handleRedeem))
	mux.HandleFunc("/api/v1/actions", s.instrument("actions", s.handleActions))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// statusRecorder 捕获响应状态码用于指标统计。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, recorder.status)
	}
}

func (s *Server) handleBundles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	infos, err := s.service.ListBundles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, infos)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	address := strings.TrimPrefix(r.URL.Path, "/api/v1/bundles/")
	info, err := s.service.BundleInfo(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleInvestPreview(w http.ResponseWriter, r *http.Request) {
	var req invest.InvestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	preview, err := s.service.PreviewInvest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, preview)
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req invest.InvestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.service.Invest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleRedeemPreview(w http.ResponseWriter, r *http.Request) {
	var req invest.RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	preview, err := s.service.PreviewRedeem(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, preview)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req invest.RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.service.Redeem(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	opts := history.ListOptions{
		Bundle: r.URL.Query().Get("bundle"),
		Action: history.Action(r.URL.Query().Get("action")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts.Limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts.Offset = parsed
		}
	}
	records, err := s.service.History(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, records)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// errorResponse 是统一的错误响应体，携带可编程的错误码。
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := xerrors.CodeOf(err)
	switch code {
	case xerrors.CodeInvalidArgument, bundle.CodeInvalidAmount:
		status = http.StatusBadRequest
	case invest.CodeBelowMinimum, invest.CodeStrategyUnsupported:
		status = http.StatusUnprocessableEntity
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: string(code), Message: err.Error()})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
