package chat

import (
	"context"
	"errors"
	"time"
)

// Adapter errors. The engine branches on these with errors.Is; anything else
// from an implementation is treated as fatal for the single call only.
var (
	ErrUserUnreachable = errors.New("user unreachable")
	ErrRateLimited     = errors.New("rate limited")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("transient chat failure")
)

// Button is one actionable control attached to a DM.
type Button struct {
	ID    string // Action id surfaced back on click (e.g. "accept:1")
	Label string
	Style string // "primary", "danger", "secondary"
}

// Field is one name/value pair rendered in an embed.
type Field struct {
	Name  string
	Value string
}

// Payload is the renderable content of one outgoing message.
type Payload struct {
	Title   string
	Body    string
	Fields  []Field
	Buttons []Button
}

// Message is one fetched channel message.
type Message struct {
	ID             int64
	AuthorID       int64
	Content        string
	AttachmentURLs []string
	CreatedAt      time.Time
}

// GuildInfo describes a resolved guild.
type GuildInfo struct {
	ID   int64
	Name string
}

// MemberInfo describes a resolved guild member.
type MemberInfo struct {
	UserID           int64
	Username         string
	DisplayName      string
	AccountCreatedAt time.Time
}

// Adapter is the capability set the engine needs from the chat platform.
// Implementations are external; everything in the engine depends only on
// this interface.
type Adapter interface {
	SendDM(ctx context.Context, userID int64, payload Payload) (messageID int64, err error)
	EditDM(ctx context.Context, userID, messageID int64, payload Payload) error
	DeleteDM(ctx context.Context, userID, messageID int64) error
	FetchChannelHistory(ctx context.Context, channelID int64, since time.Time, limit int) ([]Message, error)
	ApplyTimeout(ctx context.Context, guildID, userID int64, duration time.Duration, reason string) error
	SendChannelMessage(ctx context.Context, channelID int64, payload Payload) (messageID int64, err error)
	ResolveGuild(ctx context.Context, guildID int64) (*GuildInfo, error)
	ResolveMember(ctx context.Context, guildID, userID int64) (*MemberInfo, error)

	// WaitReady blocks until the platform session is usable or the timeout
	// elapses. Consulted before punishments are applied.
	WaitReady(ctx context.Context, timeout time.Duration) error
}
