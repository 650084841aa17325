package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ayasync/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BoardInput struct {
	Title *string         `json:"title" validate:"omitempty,max=200"`
	Data  json.RawMessage `json:"data"`
}

type ShareBoardInput struct {
	Email string `json:"email" validate:"required,email"`
}

// BoardService stores free-form personal boards. The owner and the users the
// board was shared with may read and edit it; only the owner may share.
type BoardService struct {
	DB *gorm.DB
}

func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{DB: db}
}

func (s *BoardService) Create(ctx context.Context, owner *models.User, input BoardInput) (*models.Board, error) {
	board := models.Board{
		Title:   models.DefaultBoardTitle,
		OwnerID: owner.ID,
		Members: []models.BoardMember{},
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		board.Title = strings.TrimSpace(*input.Title)
	}
	if len(input.Data) > 0 {
		board.Data = datatypes.JSON(input.Data)
	}

	if err := s.DB.WithContext(ctx).Create(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *BoardService) ListForUser(ctx context.Context, user *models.User) ([]models.Board, error) {
	boards := []models.Board{}
	err := s.DB.WithContext(ctx).Preload("Members").
		Where("owner_id = ? OR id IN (?)", user.ID,
			s.DB.Model(&models.BoardMember{}).Select("board_id").Where("user_id = ?", user.ID)).
		Order("updated_at DESC").
		Find(&boards).Error
	return boards, err
}

func (s *BoardService) Get(ctx context.Context, user *models.User, rawID string) (*models.Board, error) {
	board, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !board.CanAccess(user.ID) {
		return nil, newError(ErrForbidden, "no access to this board")
	}
	return board, nil
}

func (s *BoardService) Update(ctx context.Context, user *models.User, rawID string, input BoardInput) (*models.Board, error) {
	board, err := s.Get(ctx, user, rawID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			title = models.DefaultBoardTitle
		}
		board.Title = title
		updates["title"] = title
	}
	if len(input.Data) > 0 {
		board.Data = datatypes.JSON(input.Data)
		updates["data"] = board.Data
	}
	if len(updates) == 0 {
		return board, nil
	}

	if err := s.DB.WithContext(ctx).Model(board).Updates(updates).Error; err != nil {
		return nil, err
	}
	return board, nil
}

// Share adds the user registered under email as a board member. Sharing with
// an existing member is a no-op.
func (s *BoardService) Share(ctx context.Context, owner *models.User, rawID string, input ShareBoardInput) (*models.Board, *models.User, error) {
	board, err := s.find(ctx, rawID)
	if err != nil {
		return nil, nil, err
	}
	if board.OwnerID != owner.ID {
		return nil, nil, newError(ErrForbidden, "only the board owner can share it")
	}

	var member models.User
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, newError(ErrNotFound, "user not found")
		}
		return nil, nil, err
	}
	if member.ID == board.OwnerID || board.CanAccess(member.ID) {
		return board, &member, nil
	}

	row := models.BoardMember{BoardID: board.ID, UserID: member.ID}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, nil, err
	}
	board.Members = append(board.Members, row)
	return board, &member, nil
}

func (s *BoardService) find(ctx context.Context, rawID string) (*models.Board, error) {
	boardID, err := parseRecordID(rawID, "board")
	if err != nil {
		return nil, err
	}

	var board models.Board
	if err := s.DB.WithContext(ctx).Preload("Members").First(&board, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "board not found")
		}
		return nil, err
	}
	return &board, nil
}
