// Package dialog drives the multi-step intake conversation. Each chat owns
// one session; turns for the same chat are strictly serialized, and every
// turn ends with exactly one outbound reply and a well-defined state.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/ykravets/friendbook/bot/contract"
	"github.com/ykravets/friendbook/bot/friends"
	sessionx "github.com/ykravets/friendbook/bot/session"
)

// Replier sends one text reply to a chat. Delivery failures are logged and
// otherwise ignored.
type Replier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Machine struct {
	sessions sessionx.Store
	friends  *friends.Service
	answerer contractx.Answerer
	replier  Replier

	mu    sync.Mutex
	turns map[int64]*sync.Mutex

	now func() time.Time
}

func New(sessions sessionx.Store, svc *friends.Service, answerer contractx.Answerer, replier Replier) (*Machine, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if svc == nil {
		return nil, errors.New("friends service is required")
	}
	if answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if replier == nil {
		return nil, errors.New("replier is required")
	}
	return &Machine{
		sessions: sessions,
		friends:  svc,
		answerer: answerer,
		replier:  replier,
		turns:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}, nil
}

// Handle processes one inbound event as a full turn: load the chat's
// session, transition, run any terminal operation, save, reply. Turns for
// the same chat never overlap; rapid duplicate messages queue up.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	if ev == nil {
		return errors.New("nil event")
	}

	lock := m.turnLock(ev.Chat())
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.loadOrCreate(ctx, ev.Chat())
	if err != nil {
		return err
	}

	reply := m.transition(ctx, sess, ev)
	sess.Touch(m.now())

	// A failed save must not swallow the turn's reply: the terminal
	// operation already ran, so the user hears about it even if the
	// persisted state lags behind.
	if err := m.sessions.Save(ctx, sess); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.Chat()).Msg("session save failed")
	}

	m.reply(ctx, ev.Chat(), reply)
	return nil
}

func (m *Machine) turnLock(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.turns[chatID]
	if !ok {
		lock = &sync.Mutex{}
		m.turns[chatID] = lock
	}
	return lock
}

func (m *Machine) loadOrCreate(ctx context.Context, chatID int64) (*sessionx.Session, error) {
	sess, err := m.sessions.Load(ctx, chatID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sessionx.ErrSessionNotFound) {
		return nil, fmt.Errorf("load session for chat %d: %w", chatID, err)
	}
	return sessionx.New(chatID, m.now()), nil
}

// transition applies one event to the session and returns the single reply
// for this turn.
func (m *Machine) transition(ctx context.Context, sess *sessionx.Session, ev Event) string {
	switch ev := ev.(type) {
	case Menu:
		return m.onMenu(ctx, sess, ev)
	case Text:
		return m.onText(ctx, sess, ev)
	case Attachment:
		return m.onAttachment(ctx, sess, ev)
	default:
		return msgMenuHint
	}
}

// Menu selections apply from any state: each one redirects the session
// deterministically, so a user is never stuck mid-flow.
func (m *Machine) onMenu(ctx context.Context, sess *sessionx.Session, ev Menu) string {
	switch ev.Tag {
	case MenuCreate:
		sess.BeginCreate(m.now())
		return msgAskName
	case MenuList:
		all, err := m.friends.List(ctx)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("friend list failed")
			return errorReply(err)
		}
		return formatFriendList(all)
	case MenuLookup:
		sess.BeginFriendID(sessionx.ActionLookup, m.now())
		return msgAskFriendID
	case MenuDelete:
		sess.BeginFriendID(sessionx.ActionDelete, m.now())
		return msgAskFriendID
	case MenuAsk:
		sess.BeginFriendID(sessionx.ActionAsk, m.now())
		return msgAskFriendID
	default:
		return msgMenuHint
	}
}

func (m *Machine) onText(ctx context.Context, sess *sessionx.Session, ev Text) string {
	switch sess.State {
	case sessionx.StateAwaitingName:
		// Input is stored verbatim; only the next prompt changes.
		sess.PendingFriend.Name = ev.Content
		sess.State = sessionx.StateAwaitingProfession
		return msgAskProfession

	case sessionx.StateAwaitingProfession:
		sess.PendingFriend.Profession = ev.Content
		sess.State = sessionx.StateAwaitingDesc
		return msgAskDescription

	case sessionx.StateAwaitingDesc:
		sess.PendingFriend.ProfessionDescription = ev.Content
		sess.State = sessionx.StateAwaitingPhoto
		return msgAskPhoto

	case sessionx.StateAwaitingPhoto:
		return msgPhotoOnly

	case sessionx.StateAwaitingFriendID:
		return m.onFriendID(ctx, sess, strings.TrimSpace(ev.Content))

	case sessionx.StateAwaitingQuestion:
		return m.onQuestion(ctx, sess, ev.Content)

	default:
		return msgMenuHint
	}
}

func (m *Machine) onAttachment(ctx context.Context, sess *sessionx.Session, ev Attachment) string {
	if sess.State != sessionx.StateAwaitingPhoto {
		return msgMenuHint
	}
	if !ev.IsImage {
		// Re-prompt without losing the collected fields.
		return msgPhotoOnly
	}

	friend, err := m.friends.Create(ctx, sess.PendingFriend, ev.Filename, ev.Data, ev.ContentType)

	// Creation resolves the flow either way: the pending input is dropped
	// and the session returns to Idle even on failure.
	sess.Reset(m.now())

	if err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("friend create failed")
		return errorReply(err)
	}
	return formatFriend("Friend added!", friend)
}

func (m *Machine) onFriendID(ctx context.Context, sess *sessionx.Session, friendID string) string {
	action := sess.PendingAction

	switch action {
	case sessionx.ActionAsk:
		sess.PendingFriendID = friendID
		sess.PendingAction = sessionx.ActionNone
		sess.State = sessionx.StateAwaitingQuestion
		return msgAskQuestion

	case sessionx.ActionDelete:
		err := m.friends.Delete(ctx, friendID)
		sess.Reset(m.now())
		if err != nil {
			if !errors.Is(err, contractx.ErrNotFound) {
				log.Error().Err(err).Str("friend_id", friendID).Msg("friend delete failed")
			}
			return errorReply(err)
		}
		return msgDeleted

	default:
		// Lookup, and the defensive fallback for an unset action.
		friend, err := m.friends.Get(ctx, friendID)
		sess.Reset(m.now())
		if err != nil {
			if !errors.Is(err, contractx.ErrNotFound) {
				log.Error().Err(err).Str("friend_id", friendID).Msg("friend lookup failed")
			}
			return errorReply(err)
		}
		return formatFriend("Friend found!", friend)
	}
}

func (m *Machine) onQuestion(ctx context.Context, sess *sessionx.Session, question string) string {
	friendID := sess.PendingFriendID
	sess.Reset(m.now())

	if friendID == "" {
		// Should not occur under correct sequencing.
		return msgInternalNoID
	}

	friend, err := m.friends.Get(ctx, friendID)
	if err != nil {
		if !errors.Is(err, contractx.ErrNotFound) {
			log.Error().Err(err).Str("friend_id", friendID).Msg("friend lookup for question failed")
		}
		return errorReply(err)
	}

	answer, err := m.answerer.Answer(ctx, question, friend.Profession, friend.ProfessionDescription)
	if err != nil {
		log.Error().Err(err).Str("friend_id", friendID).Msg("answer dispatch failed")
		return errorReply(err)
	}
	return "<b>About the friend's profession:</b>\n" + answer
}

func (m *Machine) reply(ctx context.Context, chatID int64, text string) {
	if err := m.replier.Send(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("reply send failed")
	}
}
