package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"medisaga/internal/pkg/logger"
	"medisaga/internal/service/booking/application"
	"medisaga/internal/service/booking/domain"
)

const (
	adminIDHeader  = "X-Admin-ID"
	defaultAdminID = "admin"
	maxBodyBytes   = 1 << 20
)

// BookingHandler 封装了预约服务的 HTTP 处理器
type BookingHandler struct {
	service  *application.BookingApplicationService
	hub      *PushHub
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewBookingHandler hub 为 nil 时不注册 WebSocket 路由
func NewBookingHandler(service *application.BookingApplicationService, hub *PushHub, tracer trace.Tracer) *BookingHandler {
	return &BookingHandler{
		service:  service,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   tracer,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *BookingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/booking", h.traced("CreateBooking", h.createBooking))
	mux.HandleFunc("GET /api/booking/{id}/status", h.traced("BookingStatus", h.bookingStatus))
	mux.HandleFunc("GET /api/services", h.traced("ListServices", h.listServices))
	mux.HandleFunc("GET /api/user/bookings", h.traced("UserBookings", h.userBookings))
	mux.HandleFunc("GET /api/quota/status", h.traced("QuotaStatus", h.quotaStatus))
	mux.HandleFunc("GET /api/config/discount", h.traced("DiscountConfig", h.discountConfig))
	mux.HandleFunc("PUT /api/admin/config/discount", h.traced("UpdateDiscountConfig", h.updateDiscountConfig))
	mux.HandleFunc("PUT /api/admin/quota", h.traced("UpdateQuota", h.updateQuota))
	mux.HandleFunc("POST /api/admin/auth-events", h.traced("AdminAuthEvent", h.adminAuthEvent))
	mux.HandleFunc("GET /api/admin/logs", h.traced("AuditLogs", h.auditLogs))
	mux.HandleFunc("GET /api/admin/stats", h.traced("AdminStats", h.adminStats))
	mux.HandleFunc("GET /api/health", h.traced("Health", h.health))

	if h.hub != nil {
		mux.HandleFunc("GET /ws/booking/{id}", h.hub.ServeWS)
	}
}

// traced 从请求头恢复上游 trace，并为每个接口开一个 span
func (h *BookingHandler) traced(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, "http."+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.Pattern),
		)
		next(w, r.WithContext(ctx))
	}
}

func (h *BookingHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req application.CreateBookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := domain.ParseDateOfBirth(req.DateOfBirth); err != nil {
		writeError(w, http.StatusBadRequest, "Valid date of birth is required")
		return
	}

	resp, err := h.service.InitiateBooking(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *BookingHandler) bookingStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetBookingStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context(), r.URL.Query().Get("gender"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (h *BookingHandler) userBookings(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookings, err := h.service.UserBookings(r.Context(), r.URL.Query().Get("userId"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *BookingHandler) quotaStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.QuotaStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) discountConfig(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.DiscountConfig(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) updateDiscountConfig(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateDiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.UpdateDiscountConfig(r.Context(), adminID(r), *req.DiscountPercentage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) updateQuota(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateQuotaRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.UpdateQuota(r.Context(), adminID(r), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) adminAuthEvent(w http.ResponseWriter, r *http.Request) {
	var req application.AdminAuthEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RecordAdminAuthentication(r.Context(), &req); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *BookingHandler) auditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var from time.Time
	if v := q.Get("from"); v != "" {
		from, err = parseFrom(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD or RFC3339")
			return
		}
	}
	logs, err := h.service.AuditLogs(r.Context(), application.AuditLogQuery{
		ActorType:    q.Get("actorType"),
		ActionSource: q.Get("actionSource"),
		From:         from,
		Limit:        limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (h *BookingHandler) adminStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) health(w http.ResponseWriter, r *http.Request) {
	resp := h.service.Health(r.Context())
	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// decode 解析并校验请求体，失败时已经写好 400 响应
func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *BookingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, code, "internal server error")
		return
	}
	writeError(w, code, err.Error())
}

// statusFor 领域错误到 HTTP 状态码的映射
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidBooking),
		errors.Is(err, domain.ErrServiceNotFound),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed on '"+fe.Tag()+"'")
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func adminID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(adminIDHeader)); id != "" {
		return id
	}
	return defaultAdminID
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func parseFrom(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
