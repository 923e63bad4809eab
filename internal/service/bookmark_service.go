package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrBookmarkNotFound indicates the bookmark does not exist for the caller.
var ErrBookmarkNotFound = errors.New("bookmark not found")

// BookmarkService lets users tag interactions for later review. One bookmark
// exists per (user, interaction); re-creating updates in place.
type BookmarkService interface {
	Save(ctx context.Context, actor Actor, payload dto.CreateBookmarkRequest) (dto.BookmarkResponse, error)
	List(ctx context.Context, actor Actor, page, pageSize int) (dto.PagedBookmarksResponse, error)
	Delete(ctx context.Context, actor Actor, bookmarkID uint) error
}

type bookmarkService struct {
	bookmarks    repository.BookmarkRepository
	interactions repository.InteractionRepository
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBookmarkService constructs a BookmarkService instance.
func NewBookmarkService(
	bookmarks repository.BookmarkRepository,
	interactions repository.InteractionRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) BookmarkService {
	return &bookmarkService{
		bookmarks:    bookmarks,
		interactions: interactions,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "bookmark_service").Logger(),
		now:          time.Now,
	}
}

func (s *bookmarkService) Save(ctx context.Context, actor Actor, payload dto.CreateBookmarkRequest) (dto.BookmarkResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BookmarkResponse{}, err
	}

	interaction, err := s.interactions.GetByID(ctx, payload.InteractionID)
	if err != nil {
		return dto.BookmarkResponse{}, translateNotFound(err, ErrInteractionNotFound)
	}

	// Users can only bookmark interactions they can see.
	if interaction.UserID != actor.ID && !actor.IsAdmin() {
		return dto.BookmarkResponse{}, ErrInteractionNotFound
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	notes := strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes))

	existing, err := s.bookmarks.GetByUserAndInteraction(ctx, actor.ID, payload.InteractionID)
	switch {
	case err == nil:
		existing.Name = name
		existing.Notes = notes
		if err := s.bookmarks.Update(ctx, &existing); err != nil {
			return dto.BookmarkResponse{}, err
		}
		return dto.NewBookmarkResponse(existing), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return dto.BookmarkResponse{}, err
	}

	bookmark := models.InteractionBookmark{
		UserID:        actor.ID,
		InteractionID: payload.InteractionID,
		Name:          name,
		Notes:         notes,
		CreatedAt:     s.now(),
	}

	if err := s.bookmarks.Create(ctx, &bookmark); err != nil {
		// A concurrent save may win the unique (user, interaction) constraint.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			current, getErr := s.bookmarks.GetByUserAndInteraction(ctx, actor.ID, payload.InteractionID)
			if getErr != nil {
				return dto.BookmarkResponse{}, getErr
			}
			current.Name = name
			current.Notes = notes
			if updateErr := s.bookmarks.Update(ctx, &current); updateErr != nil {
				return dto.BookmarkResponse{}, updateErr
			}
			return dto.NewBookmarkResponse(current), nil
		}
		return dto.BookmarkResponse{}, err
	}

	s.logger.Info().Uint("bookmark_id", bookmark.ID).Uint("interaction_id", bookmark.InteractionID).Msg("bookmark saved")

	return dto.NewBookmarkResponse(bookmark), nil
}

func (s *bookmarkService) List(ctx context.Context, actor Actor, page, pageSize int) (dto.PagedBookmarksResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	bookmarks, total, err := s.bookmarks.ListByUser(ctx, actor.ID, page, pageSize)
	if err != nil {
		return dto.PagedBookmarksResponse{}, err
	}

	return dto.PagedBookmarksResponse{
		Items:    dto.NewBookmarkResponseSlice(bookmarks),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *bookmarkService) Delete(ctx context.Context, actor Actor, bookmarkID uint) error {
	affected, err := s.bookmarks.Delete(ctx, bookmarkID, actor.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookmarkNotFound
	}

	return nil
}
