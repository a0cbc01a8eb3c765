package services

import (
	"batepapo/domain"
	"batepapo/errors"
	"batepapo/moderation"
	"batepapo/repositories"
	"batepapo/sanitize"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// messagePayload is what a caller may set on a message. The status
// kind is absent from the oneof on purpose: status notices are
// synthesized by the room, never posted.
type messagePayload struct {
	To   string `validate:"required"`
	Text string `validate:"required"`
	Kind string `validate:"required,oneof=message private_message"`
}

type IMessageService interface {
	Post(from, to, text, kind string) (domain.Message, error)
	ListVisibleTo(user string, limit *int) ([]domain.Message, error)
	Edit(id uuid.UUID, requester, to, text, kind string) error
	Delete(id uuid.UUID, requester string) error
}

// MessageService owns the message log: posting, the visibility rule,
// and author-only edits and deletes.
type MessageService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	moderator    moderation.Moderator
	now          func() time.Time
	log          *slog.Logger
}

func NewMessageService(
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	moderator moderation.Moderator,
	now func() time.Time,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		participants: participants,
		messages:     messages,
		moderator:    moderator,
		now:          now,
		log:          log,
	}
}

// Post validates and sanitizes the fields, requires the sender to be
// present, and appends the message with a server-assigned id and time.
func (s *MessageService) Post(from, to, text, kind string) (domain.Message, error) {
	payload, err := s.cleanPayload(to, text, kind)
	if err != nil {
		return domain.Message{}, err
	}

	sender := sanitize.Clean(from)
	if _, err = s.participants.GetByName(sender); err != nil {
		if errors.Is(err, errors.ErrParticipantNotFound) {
			return domain.Message{}, errors.ErrUnknownSender
		}
		return domain.Message{}, err
	}

	now := s.now()
	censored := s.moderator.Censor(payload.Text)
	message := domain.Message{
		ID:   uuid.New(),
		From: sender,
		To:   payload.To,
		Text: censored,
		Kind: domain.Kind(payload.Kind),
		Lang: detectLang(censored),
		Time: now.Format(domain.ClockLayout),
		At:   now,
	}
	if err = s.messages.Store(message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// ListVisibleTo returns the messages the user may read, most recent
// first. A nil limit means everything; a non-positive limit is a
// caller error.
func (s *MessageService) ListVisibleTo(user string, limit *int) ([]domain.Message, error) {
	if limit != nil && *limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}
	return s.messages.ListVisibleTo(sanitize.Clean(user), limit)
}

// Edit replaces to/text/kind of the requester's own message and
// reassigns its clock time. ID and From are immutable.
func (s *MessageService) Edit(id uuid.UUID, requester, to, text, kind string) error {
	payload, err := s.cleanPayload(to, text, kind)
	if err != nil {
		return err
	}

	current, err := s.authorized(id, requester)
	if err != nil {
		return err
	}

	current.To = payload.To
	current.Text = s.moderator.Censor(payload.Text)
	current.Kind = domain.Kind(payload.Kind)
	current.Lang = detectLang(current.Text)
	current.Time = s.now().Format(domain.ClockLayout)
	return s.messages.Update(current)
}

// Delete removes the requester's own message.
func (s *MessageService) Delete(id uuid.UUID, requester string) error {
	if _, err := s.authorized(id, requester); err != nil {
		return err
	}
	return s.messages.Delete(id)
}

// authorized fetches the message and checks the requester authored it.
func (s *MessageService) authorized(id uuid.UUID, requester string) (domain.Message, error) {
	current, err := s.messages.GetByID(id)
	if err != nil {
		return domain.Message{}, err
	}
	if current.From != sanitize.Clean(requester) {
		return domain.Message{}, errors.ErrForbidden
	}
	return current, nil
}

func (s *MessageService) cleanPayload(to, text, kind string) (messagePayload, error) {
	payload := messagePayload{
		To:   sanitize.Clean(to),
		Text: sanitize.Clean(text),
		Kind: sanitize.Clean(kind),
	}
	if err := validate.Struct(payload); err != nil {
		return messagePayload{}, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return payload, nil
}

func detectLang(text string) string {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}
