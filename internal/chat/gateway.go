package chat

import (
	"context"
	"fmt"
)

// Button styles understood by the platform
const (
	StylePrimary = "primary"
	StyleSuccess = "success"
	StyleDanger  = "danger"
)

// Channel represents a text channel
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Member represents a guild member
type Member struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles,omitempty"`
}

// HasRole returns true if the member holds the given role
func (m *Member) HasRole(roleID string) bool {
	if m == nil {
		return false
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Button is an interactive control attached to a message
type Button struct {
	CustomID string `json:"custom_id"`
	Label    string `json:"label"`
	Style    string `json:"style"`
}

// Message is an outbound message, optionally with interactive controls
type Message struct {
	Content string   `json:"content"`
	Buttons []Button `json:"buttons,omitempty"`
}

// InteractionEvent is an inbound interaction delivered by the platform.
// Delivery is at-least-once: the same ID can arrive more than once.
type InteractionEvent struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"` // "button" or "command"
	CustomID  string            `json:"custom_id,omitempty"`
	Command   string            `json:"command,omitempty"`
	ActorID   string            `json:"actor_id"`
	ChannelID string            `json:"channel_id,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

// Gateway defines the chat platform operations the engine depends on.
// All calls are network round trips; none are transactional with storage.
type Gateway interface {
	CreateChannel(ctx context.Context, name, parentID string) (*Channel, error)
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error

	// SetRoleView and SetMemberView install a view-permission override on a
	// channel. allow=false denies visibility, allow=true grants it. Setting
	// the same override twice is a no-op on the platform side.
	SetRoleView(ctx context.Context, channelID, roleID string, allow bool) error
	SetMemberView(ctx context.Context, channelID, userID string, allow bool) error

	SendMessage(ctx context.Context, channelID string, msg Message) error

	GetMember(ctx context.Context, userID string) (*Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	MembersWithRole(ctx context.Context, roleID string) ([]string, error)
}

// RoleMention formats a role reference for message content
func RoleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}
