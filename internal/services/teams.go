package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ayasync/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TeamSettingsInput struct {
	AllowMemberInvites  *bool   `json:"allowMemberInvites"`
	AllowTaskCreation   *bool   `json:"allowTaskCreation"`
	AllowTaskAssignment *bool   `json:"allowTaskAssignment"`
	MaxMembers          *int    `json:"maxMembers" validate:"omitempty,min=1,max=1000"`
	Visibility          *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

type CreateTeamInput struct {
	Name        string             `json:"name" validate:"required,max=150"`
	Description string             `json:"description" validate:"max=2000"`
	Settings    *TeamSettingsInput `json:"settings"`
}

// TeamService is the team registry. Membership rows live in team_members and
// the first row of every team is its owner.
type TeamService struct {
	DB *gorm.DB
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{DB: db}
}

func (s *TeamService) Create(ctx context.Context, creator *models.User, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, newError(ErrValidation, "name is required")
	}

	settings := mergeTeamSettings(models.DefaultTeamSettings(), input.Settings)
	team := models.Team{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Settings:    datatypes.NewJSONType(settings),
		CreatedByID: creator.ID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		owner := models.TeamMember{
			TeamID:   team.ID,
			UserID:   creator.ID,
			Email:    creator.Email,
			Role:     models.TeamRoleOwner,
			IsActive: true,
			JoinedAt: time.Now().UTC(),
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, team.ID)
}

func (s *TeamService) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := s.withMembers(ctx).Order("created_at ASC").Find(&teams).Error
	return teams, err
}

func (s *TeamService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	var teams []models.Team
	err := s.withMembers(ctx).
		Where("id IN (?)", s.DB.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ? AND is_active = ?", userID, true)).
		Order("created_at ASC").
		Find(&teams).Error
	return teams, err
}

func (s *TeamService) Get(ctx context.Context, rawID string) (*models.Team, error) {
	teamID, err := parseRecordID(rawID, "team")
	if err != nil {
		return nil, err
	}
	return s.load(ctx, teamID)
}

// Join adds the user as a member. Joining a team the user already belongs to
// is a no-op and reports joined=false. maxMembers and visibility are not
// enforced here.
func (s *TeamService) Join(ctx context.Context, rawID string, user *models.User) (*models.Team, bool, error) {
	team, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, false, err
	}

	existing := team.MemberFor(user.ID)
	if existing != nil && existing.IsActive {
		return team, false, nil
	}

	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			if err := tx.Model(&models.TeamMember{}).
				Where("id = ?", existing.ID).
				Update("is_active", true).Error; err != nil {
				return err
			}
		} else {
			member := models.TeamMember{
				TeamID:   team.ID,
				UserID:   user.ID,
				Email:    user.Email,
				Role:     models.TeamRoleMember,
				IsActive: true,
				JoinedAt: now,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Team{}).Where("id = ?", team.ID).Update("updated_at", now).Error
	})
	if err != nil {
		// A concurrent join may have inserted the same (team, user) pair.
		if ok, lookupErr := s.IsMember(ctx, team.ID, user.ID); lookupErr == nil && ok {
			team, err = s.load(ctx, team.ID)
			return team, false, err
		}
		return nil, false, err
	}

	team, err = s.load(ctx, team.ID)
	return team, err == nil, err
}

func (s *TeamService) IsMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ? AND is_active = ?", teamID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (s *TeamService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Team{}).Count(&count).Error
	return count, err
}

func (s *TeamService) load(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := s.withMembers(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrNotFound, "team not found")
		}
		return nil, err
	}
	return &team, nil
}

func (s *TeamService) withMembers(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	})
}

func mergeTeamSettings(base models.TeamSettings, input *TeamSettingsInput) models.TeamSettings {
	if input == nil {
		return base
	}
	if input.AllowMemberInvites != nil {
		base.AllowMemberInvites = *input.AllowMemberInvites
	}
	if input.AllowTaskCreation != nil {
		base.AllowTaskCreation = *input.AllowTaskCreation
	}
	if input.AllowTaskAssignment != nil {
		base.AllowTaskAssignment = *input.AllowTaskAssignment
	}
	if input.MaxMembers != nil {
		base.MaxMembers = *input.MaxMembers
	}
	if input.Visibility != nil && *input.Visibility != "" {
		base.Visibility = models.TeamVisibility(*input.Visibility)
	}
	return base
}
