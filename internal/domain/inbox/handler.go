package inbox

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medline/medline/internal/platform/auth"
	"github.com/medline/medline/internal/platform/httpx"
	"github.com/medline/medline/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("patient", "doctor"))
	group.POST("/messages", h.Send)
	group.GET("/messages/inbox", h.Inbox)
	group.GET("/messages/conversation/:peer", h.Conversation)
	group.POST("/messages/conversation/:peer/read", h.MarkRead)
}

// caller returns the authenticated principal id from the request context.
func caller(c echo.Context) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(c.Request().Context())
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

type sendRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
}

func (h *Handler) Send(c echo.Context) error {
	sender, err := caller(c)
	if err != nil {
		return err
	}
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Send(c.Request().Context(), SendInput{
		SenderID:    sender,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	})
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Inbox(c echo.Context) error {
	recipient, err := caller(c)
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	unreadOnly := c.QueryParam("unread") == "true"
	items, total, err := h.svc.Inbox(c.Request().Context(), recipient, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": items,
		"total":    total,
	})
}

func (h *Handler) Conversation(c echo.Context) error {
	me, err := caller(c)
	if err != nil {
		return err
	}
	peer, err := uuid.Parse(c.Param("peer"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid peer id")
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.Conversation(c.Request().Context(), me, peer, page.Limit, page.Offset)
	if err != nil {
		return httpx.Error(c, err)
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": items,
		"total":    total,
	})
}

func (h *Handler) MarkRead(c echo.Context) error {
	me, err := caller(c)
	if err != nil {
		return err
	}
	peer, err := uuid.Parse(c.Param("peer"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid peer id")
	}
	n, err := h.svc.MarkConversationRead(c.Request().Context(), me, peer)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"marked_read": n})
}
