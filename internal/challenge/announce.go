package challenge

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortex-community/cortex-engine/internal/chat"
	"github.com/cortex-community/cortex-engine/internal/models"
)

// announceResults posts the final results to the announcement channel:
// everyone who took part in bold, and the passing submissions as winners.
func (l *Lifecycle) announceResults(ctx context.Context, ch *models.Challenge, subs []*models.Submission) error {
	participants := make([]string, 0, len(subs))
	winners := make([]string, 0, len(subs))

	for _, sub := range subs {
		name := l.displayName(ctx, sub.UserID)
		participants = append(participants, "**"+name+"**")
		if sub.Grade == models.GradePass {
			winners = append(winners, "**"+name+"**")
		}
	}

	if len(participants) == 0 {
		participants = append(participants, "*nobody*")
	}
	if len(winners) == 0 {
		winners = append(winners, "*nobody*")
	}

	msg := l.catalog.ResultsFor(
		chat.RoleMention(l.guild.AnnouncementRoleID),
		ch.Name,
		strings.Join(participants, ", "),
		strings.Join(winners, ", "),
	)

	if err := l.gateway.SendMessage(ctx, l.guild.AnnouncementChannelID, chat.Message{Content: msg}); err != nil {
		return fmt.Errorf("failed to send results announcement: %w", err)
	}

	return nil
}

func (l *Lifecycle) displayName(ctx context.Context, userID string) string {
	member, err := l.gateway.GetMember(ctx, userID)
	if err != nil || member == nil {
		return userID
	}
	return member.DisplayName
}
