package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// BookmarkHandler wires interaction bookmark HTTP routes.
type BookmarkHandler struct {
	bookmarks service.BookmarkService
	logger    zerolog.Logger
}

// NewBookmarkHandler constructs the handler.
func NewBookmarkHandler(bookmarks service.BookmarkService, logger zerolog.Logger) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarks: bookmarks,
		logger:    logger.With().Str("component", "bookmark_handler").Logger(),
	}
}

// Register attaches bookmark endpoints to the router group.
func (h *BookmarkHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.save)
	router.Delete("/:id", h.delete)
}

func (h *BookmarkHandler) save(c *fiber.Ctx) error {
	var payload dto.CreateBookmarkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	bookmark, err := h.bookmarks.Save(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "bookmark saved", bookmark)
}

func (h *BookmarkHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	bookmarks, err := h.bookmarks.List(c.UserContext(), actorFromContext(c), page, pageSize)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "bookmarks retrieved", bookmarks)
}

func (h *BookmarkHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.bookmarks.Delete(c.UserContext(), actorFromContext(c), id); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "bookmark deleted", fiber.Map{"id": id})
}
