// Package moverouter decides which of a user's games an incoming move
// message belongs to.
package moverouter

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoGame           = errors.New("no active game")
	ErrAmbiguous        = errors.New("several active games, reply to the board of the game you mean")
	ErrInvalidReference = errors.New("the replied message does not belong to one of your games")
)

// Message is the routing-relevant part of an incoming chat message.
type Message struct {
	AuthorID         string
	ChannelID        string
	ReplyToMessageID string
	// ReplyToBot is true when the referenced message was sent by the bot.
	ReplyToBot bool
}

// Lookup resolves an outbound message id to the game it displayed.
type Lookup interface {
	Lookup(ctx context.Context, messageID string) (string, error)
}

// Router routes with a reply side-table.
type Router struct {
	index Lookup
}

func New(index Lookup) *Router {
	return &Router{index: index}
}

// Route picks the game for msg out of games, the author's active game ids.
// A single game is returned regardless of any reply. With several games the
// message must reply to a bot state message registered for one of them.
func (r *Router) Route(ctx context.Context, msg Message, games []string) (string, error) {
	switch len(games) {
	case 0:
		return "", ErrNoGame
	case 1:
		return games[0], nil
	}
	ref := strings.TrimSpace(msg.ReplyToMessageID)
	if ref == "" {
		return "", ErrAmbiguous
	}
	if !msg.ReplyToBot || r.index == nil {
		return "", ErrInvalidReference
	}
	id, err := r.index.Lookup(ctx, ref)
	if errors.Is(err, ErrUnknownMessage) {
		return "", ErrInvalidReference
	}
	if err != nil {
		return "", err
	}
	for _, g := range games {
		if g == id {
			return g, nil
		}
	}
	return "", ErrInvalidReference
}
