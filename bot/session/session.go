// Package session holds per-chat conversational state. Sessions are
// ephemeral: a restart loses every in-flight dialogue.
package session

import (
	"time"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

// State names one step of the intake dialogue.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingName       State = "awaiting_name"
	StateAwaitingProfession State = "awaiting_profession"
	StateAwaitingDesc       State = "awaiting_description"
	StateAwaitingPhoto      State = "awaiting_photo"
	StateAwaitingFriendID   State = "awaiting_friend_id"
	StateAwaitingQuestion   State = "awaiting_question"
)

// Action tags which terminal operation an AwaitingFriendID turn resolves to.
type Action string

const (
	ActionNone   Action = ""
	ActionLookup Action = "lookup"
	ActionDelete Action = "delete"
	ActionAsk    Action = "ask"
)

// Session is the dialogue state for one chat. Mutated only by that chat's
// own turns.
type Session struct {
	ChatID          int64                 `json:"chat_id"`
	State           State                 `json:"state"`
	PendingFriend   contractx.FriendInput `json:"pending_friend"`
	PendingAction   Action                `json:"pending_action,omitempty"`
	PendingFriendID string                `json:"pending_friend_id,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func New(chatID int64, now time.Time) *Session {
	return &Session{
		ChatID:    chatID,
		State:     StateIdle,
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Reset returns the session to Idle and drops all pending input.
func (s *Session) Reset(now time.Time) {
	s.State = StateIdle
	s.PendingFriend = contractx.FriendInput{}
	s.PendingAction = ActionNone
	s.PendingFriendID = ""
	s.Touch(now)
}

// BeginCreate clears any partial friend and moves to AwaitingName.
func (s *Session) BeginCreate(now time.Time) {
	s.PendingFriend = contractx.FriendInput{}
	s.PendingAction = ActionNone
	s.PendingFriendID = ""
	s.State = StateAwaitingName
	s.Touch(now)
}

// BeginFriendID moves to AwaitingFriendID tagged with the terminal action.
func (s *Session) BeginFriendID(action Action, now time.Time) {
	s.PendingAction = action
	s.PendingFriendID = ""
	s.State = StateAwaitingFriendID
	s.Touch(now)
}
