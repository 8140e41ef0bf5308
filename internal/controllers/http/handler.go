package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	payments     *services.PaymentService
	sessions     *services.TableSessionService
	channel      pubsub.Channel
	restaurantID string
	log          zerolog.Logger
}

func NewHandler(p *services.PaymentService, s *services.TableSessionService, ch pubsub.Channel, restaurantID string, log zerolog.Logger) *Handler {
	return &Handler{
		payments:     p,
		sessions:     s,
		channel:      ch,
		restaurantID: restaurantID,
		log:          log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	r.PATCH("/orders/:id/payment-status", h.UpdatePaymentStatus)
	r.POST("/orders/:id/refunds", h.ProcessRefund)
	r.POST("/orders/:id/split-payment", h.ProcessSplitPayment)
	r.POST("/payments", h.CreatePayment)

	r.POST("/tables/:id/sessions", h.OpenTableSession)
	r.GET("/sessions/:id", h.GetSession)
	r.GET("/sessions/:id/cart", h.GetSharedCart)
	r.PUT("/sessions/:id/cart", h.UpdateSharedCart)
	r.DELETE("/sessions/:id/cart", h.ClearSharedCart)
	r.GET("/sessions/:id/cart/stream", h.StreamSharedCart)
	r.POST("/sessions/:id/end", h.EndTableSession)

	r.GET("/notifications/:scope/stream", h.StreamNotifications)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "tablesync",
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.payments.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.payments.CreatePayment(c.Request.Context(), services.CreatePaymentInput{
		OrderID:          req.OrderID,
		Amount:           req.Amount,
		Method:           req.Method,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ProcessRefund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.payments.ProcessRefund(c.Request.Context(), c.Param("id"), services.RefundRequest{
		RefundAmount:    req.RefundAmount,
		Reason:          req.Reason,
		AlreadyRefunded: req.AlreadyRefunded,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ProcessSplitPayment(c *gin.Context) {
	var req SplitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.payments.ProcessSplitPayment(c.Request.Context(), c.Param("id"), req.CashAmount, req.OnlineAmount, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) OpenTableSession(c *gin.Context) {
	var req OpenSessionRequest
	// An empty body is allowed; the restaurant falls back to the configured one.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restaurantID := req.RestaurantID
	if restaurantID == "" {
		restaurantID = h.restaurantID
	}

	session, err := h.sessions.OpenTableSession(c.Request.Context(), restaurantID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSessionWithOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) GetSharedCart(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, CartResponse{SessionID: id, Items: h.sessions.GetSharedCart(c.Request.Context(), id)})
}

func (h *Handler) UpdateSharedCart(c *gin.Context) {
	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.sessions.UpdateSharedCart(c.Request.Context(), id, req.Items); err != nil {
		writeError(c, err)
		return
	}
	if req.Items == nil {
		req.Items = []domain.CartItem{}
	}
	c.JSON(http.StatusOK, CartResponse{SessionID: id, Items: req.Items})
}

func (h *Handler) ClearSharedCart(c *gin.Context) {
	c.JSON(http.StatusOK, ClearCartResponse{Success: h.sessions.ClearSharedCart(c.Request.Context(), c.Param("id"))})
}

func (h *Handler) EndTableSession(c *gin.Context) {
	if err := h.sessions.EndTableSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StreamSharedCart pushes cart snapshots as server-sent events until the
// client disconnects or the session ends.
func (h *Handler) StreamSharedCart(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	snaps := make(chan domain.CartSnapshot, 16)
	sub, err := h.sessions.SubscribeToSharedCart(ctx, id, func(s domain.CartSnapshot) {
		select {
		case snaps <- s:
		case <-ctx.Done():
		}
	})
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.SSEvent("cart", CartResponse{SessionID: id, Items: h.sessions.GetSharedCart(ctx, id)})
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s := <-snaps:
			c.SSEvent("cart", s)
			return !s.Ended
		}
	})
}

func (h *Handler) StreamNotifications(c *gin.Context) {
	scope := domain.Scope(c.Param("scope"))
	if scope != domain.ScopeKitchen && scope != domain.ScopeManagement {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be kitchen or management"})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.channel.Subscribe(ctx, domain.NotificationTopic(scope))
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case payload, ok := <-sub.Messages():
			if !ok {
				return false
			}
			var ev domain.OrderEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				h.log.Warn().Err(err).Msg("dropping undecodable notification")
				return true
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		}
	})
}
