package app

import (
	"fmt"
	"strings"
	"time"

	"learninghelper/internal/util"
	"learninghelper/pkg/domain"
)

// SaveTranscription persists a transcription result for later review.
func (a *App) SaveTranscription(user domain.User, text, source, language, device string, metadata map[string]string) (domain.Transcription, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Transcription{}, fmt.Errorf("transcription text required")
	}
	t := domain.Transcription{
		ID:        util.NewID(),
		UserID:    user.ID,
		Text:      text,
		Source:    source,
		Language:  language,
		Device:    device,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveTranscription(t); err != nil {
		return domain.Transcription{}, fmt.Errorf("save transcription: %w", err)
	}
	return t, nil
}

// ListTranscriptions returns the user's transcription history, newest first.
func (a *App) ListTranscriptions(user domain.User) ([]domain.Transcription, error) {
	return a.store.ListTranscriptionsByUser(user.ID)
}
