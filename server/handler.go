package server

import (
	"batepapo/domain"
	"batepapo/errors"
	"batepapo/services"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/lo"
)

// identityHeader carries the caller's claimed display name. It is
// trusted as-is: the room has no credentials by design.
const identityHeader = "User"

// Server is the thin HTTP shell over the presence and message
// services: it binds payloads, reads the identity header, and
// translates the engine's tagged errors into status codes.
type Server struct {
	addr     string
	presence services.IPresenceService
	messages services.IMessageService
	log      *slog.Logger
	e        *echo.Echo
}

func NewServer(
	addr string,
	presence services.IPresenceService,
	messages services.IMessageService,
	log *slog.Logger,
) *Server {
	s := &Server{addr: addr, presence: presence, messages: messages, log: log, e: echo.New()}

	e := s.e
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", s.health)
	e.POST("/participants", s.registerParticipant)
	e.GET("/participants", s.listParticipants)
	e.POST("/messages", s.postMessage)
	e.GET("/messages", s.listMessages)
	e.PUT("/messages/:id", s.editMessage)
	e.DELETE("/messages/:id", s.deleteMessage)
	e.POST("/status", s.heartbeat)
	return s
}

func (s *Server) Start() error {
	return s.e.Start(s.addr)
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}

type registerRequest struct {
	Name string `json:"name"`
}

type participantDTO struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type messageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type messageDTO struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Lang string `json:"lang,omitempty"`
	Time string `json:"time"`
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) registerParticipant(c echo.Context) error {
	var body registerRequest
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	participant, err := s.presence.Register(body.Name)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toParticipantDTO(participant))
}

func (s *Server) listParticipants(c echo.Context) error {
	participants, err := s.presence.List()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, lo.Map(participants, func(p domain.Participant, _ int) participantDTO {
		return toParticipantDTO(p)
	}))
}

func (s *Server) postMessage(c echo.Context) error {
	var body messageRequest
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	message, err := s.messages.Post(identity(c), body.To, body.Text, body.Type)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toMessageDTO(message))
}

func (s *Server) listMessages(c echo.Context) error {
	var limit *int
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return s.fail(c, fmt.Errorf("%w: %q", errors.ErrInvalidLimit, raw))
		}
		limit = &n
	}

	messages, err := s.messages.ListVisibleTo(identity(c), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) messageDTO {
		return toMessageDTO(m)
	}))
}

func (s *Server) editMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return s.fail(c, errors.ErrMessageNotFound)
	}
	var body messageRequest
	if err = c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if err = s.messages.Edit(id, identity(c), body.To, body.Text, body.Type); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) deleteMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return s.fail(c, errors.ErrMessageNotFound)
	}
	if err = s.messages.Delete(id, identity(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) heartbeat(c echo.Context) error {
	if err := s.presence.Heartbeat(identity(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// fail translates an engine error into a transport status. Expected
// outcomes go back to the caller untouched; only storage faults are
// logged as failures.
func (s *Server) fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return c.NoContent(code)
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidName),
		errors.Is(err, errors.ErrInvalidMessage),
		errors.Is(err, errors.ErrInvalidLimit),
		errors.Is(err, errors.ErrUnknownSender):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, errors.ErrParticipantNotFound),
		errors.Is(err, errors.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func identity(c echo.Context) string {
	return c.Request().Header.Get(identityHeader)
}

func toParticipantDTO(p domain.Participant) participantDTO {
	return participantDTO{Name: p.Name, LastStatus: p.LastStatus}
}

func toMessageDTO(m domain.Message) messageDTO {
	return messageDTO{
		ID:   m.ID.String(),
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Kind),
		Lang: m.Lang,
		Time: m.Time,
	}
}
