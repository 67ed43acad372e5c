package adaptor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ponyo877/lounge/server/domain"
	"go.uber.org/zap"
)

// ConversationStore is the subset of the conversation repository served
// over HTTP.
type ConversationStore interface {
	FindOrCreateConversation(ctx context.Context, userA, userB string) (domain.Conversation, error)
	AppendPersistedMessage(ctx context.Context, conversationID, senderID, text string) (domain.PersistedMessage, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.PersistedMessage, error)
	SearchMessages(ctx context.Context, conversationID, pattern string) ([]domain.PersistedMessage, error)
}

type RouterConfig struct {
	Adaptor  *Adaptor
	Presence PresenceReader
	Rooms    RoomReader
	// Delivery may be nil; /healthz then omits queue figures.
	Delivery DeliveryStats
	// Store may be nil; conversation routes then answer 503.
	Store        ConversationStore
	StoreTimeout time.Duration
	Logger       *zap.Logger
}

type api struct {
	presence PresenceReader
	rooms    RoomReader
	delivery DeliveryStats
	store    ConversationStore
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	a := &api{
		presence: cfg.Presence,
		rooms:    cfg.Rooms,
		delivery: cfg.Delivery,
		store:    cfg.Store,
		timeout:  cfg.StoreTimeout,
		logger:   cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Logger))

	if cfg.Adaptor != nil {
		r.GET("/ws", cfg.Adaptor.ServeWS)
	}
	r.GET("/healthz", a.health)

	g := r.Group("/api")
	g.GET("/rooms", a.listRooms)
	g.GET("/online", a.listOnline)

	conv := g.Group("/conversations", a.requireStore)
	conv.GET("", a.listConversations)
	conv.POST("", a.createConversation)
	conv.GET("/:id/messages", a.listMessages)
	conv.POST("/:id/messages", a.sendMessage)
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/ws" {
			return
		}
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (a *api) health(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"online": a.presence.OnlineCount(),
		"rooms":  a.rooms.Count(),
	}
	if a.delivery != nil {
		body["connections"] = a.delivery.Count()
		body["dropped"] = a.delivery.Dropped()
	}
	c.JSON(http.StatusOK, body)
}

func (a *api) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "rooms": a.rooms.Summaries()})
}

func (a *api) listOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "users": a.presence.ListOnline()})
}

func (a *api) requireStore(c *gin.Context) {
	if a.store == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": domain.ErrPersistenceUnavailable.Error()})
		return
	}
	c.Next()
}

func (a *api) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPattern):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("conversation store", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required fields"})
}

func (a *api) listConversations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()

	conversations, err := a.store.ListConversations(ctx, userID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": conversations})
}

type createConversationRequest struct {
	SenderID   string `json:"senderId" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
}

func (a *api) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SenderID == req.ReceiverID {
		badRequest(c)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()

	conversation, err := a.store.FindOrCreateConversation(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conversation})
}

// listMessages returns the conversation oldest first. With q it returns
// only messages whose text matches the regular expression.
func (a *api) listMessages(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()

	var (
		messages []domain.PersistedMessage
		err      error
	)
	if q := c.Query("q"); q != "" {
		messages, err = a.store.SearchMessages(ctx, id, q)
	} else {
		messages, err = a.store.ListMessages(ctx, id)
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	if messages == nil {
		messages = []domain.PersistedMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}

type sendMessageRequest struct {
	SenderID string `json:"senderId" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

func (a *api) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()

	message, err := a.store.AppendPersistedMessage(ctx, c.Param("id"), req.SenderID, req.Text)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}
