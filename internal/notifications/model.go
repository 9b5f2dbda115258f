package notifications

import (
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/target"
)

// Action enumerates notification types.
type Action string

// Supported notification actions.
const (
	ActionFollow   Action = "follow"
	ActionComment  Action = "comment"
	ActionReply    Action = "reply"
	ActionReaction Action = "reaction"
	ActionBookmark Action = "bookmark"
	ActionSignUp   Action = "sign_up"
	ActionLogIn    Action = "log_in"
)

// Notification is a recorded activity event addressed to one recipient.
type Notification struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	RecipientID uint      `gorm:"column:recipient_id;not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	ActorID     uint      `gorm:"column:actor_id;not null;index" json:"actor_id"`
	Action      Action    `gorm:"column:action_type;size:20;not null" json:"action_type"`
	TargetType  *string   `gorm:"column:target_type;size:20" json:"target_type,omitempty"`
	TargetID    *uint     `gorm:"column:target_id" json:"target_id,omitempty"`
	IsRead      bool      `gorm:"column:is_read;not null;default:false;index:idx_notifications_recipient,priority:2" json:"is_read"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

// TableName exposes the table backing notifications.
func (Notification) TableName() string {
	return "notifications"
}

// Target decodes the stored polymorphic reference. Unknown kinds decode as none.
func (n Notification) Target() target.Ref {
	if n.TargetType == nil || n.TargetID == nil {
		return target.None()
	}
	ref, err := target.Parse(*n.TargetType, *n.TargetID)
	if err != nil {
		return target.None()
	}
	return ref
}

// Event is a single emission request.
type Event struct {
	Recipient uint
	Actor     uint
	Action    Action
	Target    target.Ref
}

// Suppressed reports whether the event is a self-action on content, which never notifies.
// Events without a target always record.
func (e Event) Suppressed() bool {
	return e.Recipient == e.Actor && !e.Target.IsNone()
}

func (e Event) record(now time.Time) Notification {
	notification := Notification{
		RecipientID: e.Recipient,
		ActorID:     e.Actor,
		Action:      e.Action,
		CreatedAt:   now,
	}
	if !e.Target.IsNone() {
		kind := string(e.Target.Kind)
		id := e.Target.ID
		notification.TargetType = &kind
		notification.TargetID = &id
	}
	return notification
}
