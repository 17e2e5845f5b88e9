package messaging

import (
	"context"
	"sort"

	"dm-service/internal/models"
)

// GetConversations lists every partner the user exchanged messages with,
// excluding blocked partners in either direction, newest activity first.
func (g *Gateway) GetConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	blocked, err := g.blocks.BlockedPartners(ctx, userID)
	if err != nil {
		return nil, err
	}
	excluded := make(map[int]struct{}, len(blocked))
	for _, id := range blocked {
		excluded[id] = struct{}{}
	}

	partnerIDs, err := g.messages.PartnerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	partners := make([]int, 0, len(partnerIDs))
	for _, id := range partnerIDs {
		if _, ok := excluded[id]; !ok {
			partners = append(partners, id)
		}
	}

	users, err := g.users.ResolveMany(ctx, partners)
	if err != nil {
		return nil, err
	}

	convs := make([]models.Conversation, 0, len(partners))
	for _, partnerID := range partners {
		last, err := g.messages.LastMessage(ctx, userID, partnerID)
		if err != nil {
			return nil, err
		}
		unread, err := g.messages.UnreadCount(ctx, partnerID, userID)
		if err != nil {
			return nil, err
		}
		convs = append(convs, models.NewConversation(userView(users, partnerID), last, unread))
	}

	sort.SliceStable(convs, func(i, j int) bool {
		ti, tj := convs[i].SortKey(), convs[j].SortKey()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return convs[i].User.ID < convs[j].User.ID
	})
	return convs, nil
}
