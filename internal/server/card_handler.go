package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/statistics"
)

// NoCardsDueMessage is returned with 200 when nothing is due.
const NoCardsDueMessage = "No cards due for review. Great job!"

// CardHandler serves the study and card management endpoints.
type CardHandler struct {
	scheduler *scheduler.Scheduler
	repo      card.Repository
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(sched *scheduler.Scheduler, repo card.Repository) *CardHandler {
	return &CardHandler{
		scheduler: sched,
		repo:      repo,
	}
}

// Register adds the routes of h to e.
func (h *CardHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	e.GET("/next-due-card", h.NextDueCard)
	e.POST("/record-review", h.RecordReview)

	// routes used by the browser clients
	e.GET("/get-due-card", h.NextDueCard)
	e.GET("/get-card", h.GetCard)
	e.POST("/update-card-performance", h.UpdateCardPerformance)
	e.POST("/answer-card", h.RecordReview)

	e.GET("/cards", h.ListCards)
	e.POST("/cards", h.CreateCards)
	e.GET("/cards/:id", h.GetCardByID)
	e.GET("/courses", h.ListCourses)
	e.GET("/stats", h.Stats)
}

type messageResponse struct {
	Message string `json:"message"`
}

type courseQuery struct {
	Course string `query:"course"`
}

type recordReviewRequest struct {
	CardID  flexInt  `json:"cardId" validate:"required"`
	Quality *flexInt `json:"quality" validate:"required"`
	// Course is sent by the browser client and not needed to find the card.
	Course string `json:"course"`
}

type updateCardPerformanceResponse struct {
	Message     string     `json:"message"`
	UpdatedCard *card.Card `json:"updated_card"`
}

type cardInput struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Course        string   `json:"course"`
}

func (in cardInput) toCard(defaultCourse string) *card.Card {
	c := &card.Card{
		Type:          card.Type(in.Type),
		Question:      in.Question,
		Answer:        in.Answer,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		Course:        in.Course,
	}
	if c.Course == "" {
		c.Course = defaultCourse
	}
	return c
}

// createCardsRequest is either one card or {"course": ..., "cards": [...]}.
type createCardsRequest struct {
	cardInput
	Cards []cardInput `json:"cards"`
}

type cardsResponse struct {
	Cards []card.Card `json:"cards"`
}

type coursesResponse struct {
	Courses []string `json:"courses"`
}

func (h *CardHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// NextDueCard returns the next due card, or a message when nothing is due.
func (h *CardHandler) NextDueCard(c echo.Context) error {
	var q courseQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	next, err := h.scheduler.NextDueCard(c.Request().Context(), q.Course)
	if err != nil {
		return err
	}
	if next == nil {
		return c.JSON(http.StatusOK, messageResponse{Message: NoCardsDueMessage})
	}
	return c.JSON(http.StatusOK, next)
}

// GetCard is NextDueCard for the course study page, which treats any
// non-2xx response as "no card".
func (h *CardHandler) GetCard(c echo.Context) error {
	var q courseQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	next, err := h.scheduler.NextDueCard(c.Request().Context(), q.Course)
	if err != nil {
		return err
	}
	if next == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: NoCardsDueMessage})
	}
	return c.JSON(http.StatusOK, next)
}

func (h *CardHandler) recordReview(c echo.Context) (*card.Card, error) {
	var req recordReviewRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	if err := c.Validate(&req); err != nil {
		return nil, fmt.Errorf("%w: cardId and quality are required", scheduler.ErrInvalidInput)
	}
	if int64(*req.Quality) < scheduler.MinQuality || int64(*req.Quality) > scheduler.MaxQuality {
		return nil, fmt.Errorf("%w: quality %d is outside [%d, %d]",
			scheduler.ErrInvalidInput, *req.Quality, scheduler.MinQuality, scheduler.MaxQuality)
	}
	return h.scheduler.RecordReview(c.Request().Context(), int64(req.CardID), int(*req.Quality))
}

// RecordReview applies a rating and returns the updated card.
func (h *CardHandler) RecordReview(c echo.Context) error {
	updated, err := h.recordReview(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// UpdateCardPerformance is RecordReview with the response shape of the
// first browser client.
func (h *CardHandler) UpdateCardPerformance(c echo.Context) error {
	updated, err := h.recordReview(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updateCardPerformanceResponse{
		Message:     "Card updated successfully",
		UpdatedCard: updated,
	})
}

func (h *CardHandler) ListCards(c echo.Context) error {
	var q courseQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	cards, err := h.repo.FindAll(c.Request().Context(), q.Course)
	if err != nil {
		return fmt.Errorf("repo.FindAll() > %w", err)
	}
	if cards == nil {
		cards = []card.Card{}
	}
	return c.JSON(http.StatusOK, cardsResponse{Cards: cards})
}

// CreateCards stores one card or a batch. A batch is stored completely or
// not at all.
func (h *CardHandler) CreateCards(c echo.Context) error {
	var req createCardsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if len(req.Cards) == 0 {
		created := req.cardInput.toCard("")
		if err := h.scheduler.AddCard(ctx, created); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, created)
	}

	batch := make([]*card.Card, 0, len(req.Cards))
	for _, in := range req.Cards {
		batch = append(batch, in.toCard(req.Course))
	}
	if err := h.scheduler.AddCards(ctx, batch); err != nil {
		return err
	}

	created := make([]card.Card, 0, len(batch))
	for _, stored := range batch {
		created = append(created, *stored)
	}
	return c.JSON(http.StatusCreated, cardsResponse{Cards: created})
}

func (h *CardHandler) GetCardByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: card id %q", scheduler.ErrInvalidInput, c.Param("id"))
	}
	found, err := h.scheduler.Card(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, found)
}

func (h *CardHandler) ListCourses(c echo.Context) error {
	courses, err := h.repo.Courses(c.Request().Context())
	if err != nil {
		return fmt.Errorf("repo.Courses() > %w", err)
	}
	if courses == nil {
		courses = []string{}
	}
	return c.JSON(http.StatusOK, coursesResponse{Courses: courses})
}

type statsQuery struct {
	Course string `query:"course"`
	Year   int    `query:"year"`
	Month  int    `query:"month"`
}

func (h *CardHandler) Stats(c echo.Context) error {
	var q statsQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	if q.Month < 0 || q.Month > 12 || (q.Month != 0 && q.Year == 0) {
		return fmt.Errorf("%w: month must be between 1 and 12 and needs a year", scheduler.ErrInvalidInput)
	}

	ctx := c.Request().Context()
	cards, err := h.repo.FindAll(ctx, q.Course)
	if err != nil {
		return fmt.Errorf("repo.FindAll() > %w", err)
	}
	logs, err := h.repo.FindReviewLogs(ctx, q.Course)
	if err != nil {
		return fmt.Errorf("repo.FindReviewLogs() > %w", err)
	}
	result := statistics.Calculate(cards, logs, h.scheduler.Now(), statistics.Filter{Year: q.Year, Month: q.Month})
	return c.JSON(http.StatusOK, result)
}
