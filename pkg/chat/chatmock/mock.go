package chatmock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vigild/vigil/pkg/chat"
)

// Adapter is a testify mock of chat.Adapter.
type Adapter struct {
	mock.Mock
}

var _ chat.Adapter = (*Adapter)(nil)

func (m *Adapter) SendDM(ctx context.Context, userID int64, payload chat.Payload) (int64, error) {
	args := m.Called(ctx, userID, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Adapter) EditDM(ctx context.Context, userID, messageID int64, payload chat.Payload) error {
	args := m.Called(ctx, userID, messageID, payload)
	return args.Error(0)
}

func (m *Adapter) DeleteDM(ctx context.Context, userID, messageID int64) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *Adapter) FetchChannelHistory(ctx context.Context, channelID int64, since time.Time, limit int) ([]chat.Message, error) {
	args := m.Called(ctx, channelID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Message), args.Error(1)
}

func (m *Adapter) ApplyTimeout(ctx context.Context, guildID, userID int64, duration time.Duration, reason string) error {
	args := m.Called(ctx, guildID, userID, duration, reason)
	return args.Error(0)
}

func (m *Adapter) SendChannelMessage(ctx context.Context, channelID int64, payload chat.Payload) (int64, error) {
	args := m.Called(ctx, channelID, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Adapter) ResolveGuild(ctx context.Context, guildID int64) (*chat.GuildInfo, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.GuildInfo), args.Error(1)
}

func (m *Adapter) ResolveMember(ctx context.Context, guildID, userID int64) (*chat.MemberInfo, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.MemberInfo), args.Error(1)
}

func (m *Adapter) WaitReady(ctx context.Context, timeout time.Duration) error {
	args := m.Called(ctx, timeout)
	return args.Error(0)
}
