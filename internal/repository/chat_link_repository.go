package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chore-tracker/internal/model"
	"chore-tracker/internal/sentinel"
)

// ChatLinkRepository stores which chore user a Telegram account acts as.
type ChatLinkRepository struct {
	db *gorm.DB
}

func NewChatLinkRepository(db *gorm.DB) *ChatLinkRepository {
	return &ChatLinkRepository{db: db}
}

// Link binds telegramID to the given user, replacing any previous binding.
func (r *ChatLinkRepository) Link(ctx context.Context, telegramID, chatID, userID, householdID int64) (*model.ChatLink, error) {
	var link model.ChatLink
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&link).Error
	switch {
	case err == nil:
		link.ChatID = chatID
		link.UserID = userID
		link.HouseholdID = householdID
		if err := db.Save(&link).Error; err != nil {
			return nil, fmt.Errorf("update chat link: %w", err)
		}
		return &link, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		link = model.ChatLink{
			TelegramID:  telegramID,
			ChatID:      chatID,
			UserID:      userID,
			HouseholdID: householdID,
		}
		if err := db.Create(&link).Error; err != nil {
			return nil, fmt.Errorf("create chat link: %w", err)
		}
		return &link, nil
	default:
		return nil, fmt.Errorf("find chat link: %w", err)
	}
}

// FindByTelegramID returns sentinel.ErrNotFound when the account is unlinked.
func (r *ChatLinkRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.ChatLink, error) {
	var link model.ChatLink
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no chore user linked to telegram account %d", sentinel.ErrNotFound, telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("find chat link: %w", err)
	}
	return &link, nil
}

func (r *ChatLinkRepository) ListAll(ctx context.Context) ([]model.ChatLink, error) {
	var links []model.ChatLink
	if err := r.db.WithContext(ctx).Order("household_id ASC, id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
