// Package chattest provides an in-memory chat.Gateway for tests
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortex-community/cortex-engine/internal/chat"
)

// Gateway records every platform effect in memory. Individual operations
// can be made to fail through the error fields.
type Gateway struct {
	mu         sync.Mutex
	nextID     int
	channels   map[string]*chat.Channel
	messages   map[string][]chat.Message
	memberView map[string]map[string]bool
	roleView   map[string]map[string]bool
	members    map[string]*chat.Member
	roles      map[string]map[string]bool
	renames    int

	CreateChannelErr error
	DeleteChannelErr error
	sendErr          map[string]error
}

// NewGateway creates an empty in-memory gateway
func NewGateway() *Gateway {
	return &Gateway{
		channels:   make(map[string]*chat.Channel),
		messages:   make(map[string][]chat.Message),
		memberView: make(map[string]map[string]bool),
		roleView:   make(map[string]map[string]bool),
		members:    make(map[string]*chat.Member),
		roles:      make(map[string]map[string]bool),
		sendErr:    make(map[string]error),
	}
}

func (g *Gateway) CreateChannel(_ context.Context, name, parentID string) (*chat.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateChannelErr != nil {
		return nil, g.CreateChannelErr
	}
	g.nextID++
	ch := &chat.Channel{ID: fmt.Sprintf("chan-%d", g.nextID), Name: name, ParentID: parentID}
	g.channels[ch.ID] = ch
	return ch, nil
}

func (g *Gateway) GetChannel(_ context.Context, channelID string) (*chat.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel not found: %s", channelID)
	}
	cp := *ch
	return &cp, nil
}

func (g *Gateway) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteChannelErr != nil {
		return g.DeleteChannelErr
	}
	delete(g.channels, channelID)
	return nil
}

func (g *Gateway) RenameChannel(_ context.Context, channelID, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[channelID]
	if !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	ch.Name = name
	g.renames++
	return nil
}

func (g *Gateway) SetRoleView(_ context.Context, channelID, roleID string, allow bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roleView[channelID] == nil {
		g.roleView[channelID] = make(map[string]bool)
	}
	g.roleView[channelID][roleID] = allow
	return nil
}

func (g *Gateway) SetMemberView(_ context.Context, channelID, userID string, allow bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.memberView[channelID] == nil {
		g.memberView[channelID] = make(map[string]bool)
	}
	g.memberView[channelID][userID] = allow
	return nil
}

func (g *Gateway) SendMessage(_ context.Context, channelID string, msg chat.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.sendErr[channelID]; ok {
		return err
	}
	g.messages[channelID] = append(g.messages[channelID], msg)
	return nil
}

func (g *Gateway) GetMember(_ context.Context, userID string) (*chat.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.members[userID]
	if !ok {
		return nil, fmt.Errorf("member not found: %s", userID)
	}
	cp := *m
	return &cp, nil
}

func (g *Gateway) AddRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roles[userID] == nil {
		g.roles[userID] = make(map[string]bool)
	}
	g.roles[userID][roleID] = true
	return nil
}

func (g *Gateway) RemoveRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.roles[userID], roleID)
	return nil
}

func (g *Gateway) MembersWithRole(_ context.Context, roleID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for userID, held := range g.roles {
		if held[roleID] {
			out = append(out, userID)
		}
	}
	return out, nil
}

// Test helpers

// AddMember registers a member with a display name and optional roles
func (g *Gateway) AddMember(userID, displayName string, roleIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[userID] = &chat.Member{ID: userID, DisplayName: displayName, Roles: roleIDs}
	if g.roles[userID] == nil {
		g.roles[userID] = make(map[string]bool)
	}
	for _, r := range roleIDs {
		g.roles[userID][r] = true
	}
}

// FailSend makes SendMessage fail for one channel
func (g *Gateway) FailSend(channelID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendErr[channelID] = err
}

// ChannelCount returns the number of live channels
func (g *Gateway) ChannelCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.channels)
}

// MessagesIn returns a copy of the messages sent to a channel
func (g *Gateway) MessagesIn(channelID string) []chat.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chat.Message(nil), g.messages[channelID]...)
}

// Renames returns how many channel renames happened
func (g *Gateway) Renames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.renames
}

// MemberCanView reports the member view override on a channel
func (g *Gateway) MemberCanView(channelID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memberView[channelID][userID]
}

// RoleCanView reports the role view override on a channel
func (g *Gateway) RoleCanView(channelID, roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roleView[channelID][roleID]
}

// HasRole reports whether a member currently holds a role
func (g *Gateway) HasRole(userID, roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roles[userID][roleID]
}
