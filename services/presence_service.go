package services

import (
	"batepapo/domain"
	"batepapo/errors"
	"batepapo/repositories"
	"batepapo/sanitize"
	"fmt"
	"log/slog"
	"time"
)

type IPresenceService interface {
	Register(name string) (domain.Participant, error)
	List() ([]domain.Participant, error)
	Heartbeat(name string) error
}

// PresenceService owns who counts as present: registration with its
// join notice, the participant listing, and heartbeats.
type PresenceService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	now          func() time.Time
	log          *slog.Logger
}

func NewPresenceService(
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	now func() time.Time,
	log *slog.Logger,
) *PresenceService {
	return &PresenceService{participants: participants, messages: messages, now: now, log: log}
}

// Register inserts a sanitized, non-empty display name and records the
// join notice. The name uniqueness is enforced by the repository
// transaction and surfaces as ErrNameTaken. If the join notice cannot
// be written after the insert, the error is returned to the caller
// rather than leaving the registration silently half-done.
func (s *PresenceService) Register(rawName string) (domain.Participant, error) {
	name := sanitize.Clean(rawName)
	if name == "" {
		return domain.Participant{}, errors.ErrInvalidName
	}

	now := s.now()
	participant := domain.Participant{Name: name, LastStatus: now.UnixMilli()}
	if err := s.participants.Create(participant); err != nil {
		return domain.Participant{}, err
	}

	joined := domain.NewStatusMessage(name, domain.JoinNotice, now)
	if err := s.messages.Store(joined); err != nil {
		return domain.Participant{}, fmt.Errorf("join notice not recorded for %q: %w", name, err)
	}

	s.log.Info("Participant joined", "name", name)
	return participant, nil
}

func (s *PresenceService) List() ([]domain.Participant, error) {
	return s.participants.List()
}

// Heartbeat refreshes the caller's last-seen timestamp.
func (s *PresenceService) Heartbeat(rawName string) error {
	name := sanitize.Clean(rawName)
	if name == "" {
		return errors.ErrParticipantNotFound
	}
	return s.participants.Touch(name, s.now().UnixMilli())
}
