package chat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vigild/vigil/pkg/logging"
)

// NoopAdapter logs every call and succeeds with synthetic ids. It backs
// dry-run deployments where no platform adapter is compiled in, and lets the
// engine start without credentials.
type NoopAdapter struct {
	logger *logging.Logger
	nextID atomic.Int64
}

var _ Adapter = (*NoopAdapter)(nil)

// NewNoopAdapter creates a new no-op adapter
func NewNoopAdapter(logger *logging.Logger) *NoopAdapter {
	return &NoopAdapter{logger: logger}
}

func (a *NoopAdapter) id() int64 {
	return a.nextID.Add(1)
}

func (a *NoopAdapter) SendDM(ctx context.Context, userID int64, payload Payload) (int64, error) {
	id := a.id()
	a.logger.Debugf("noop adapter: SendDM to %d: %s", userID, payload.Title)
	return id, nil
}

func (a *NoopAdapter) EditDM(ctx context.Context, userID, messageID int64, payload Payload) error {
	a.logger.Debugf("noop adapter: EditDM %d for %d: %s", messageID, userID, payload.Title)
	return nil
}

func (a *NoopAdapter) DeleteDM(ctx context.Context, userID, messageID int64) error {
	a.logger.Debugf("noop adapter: DeleteDM %d for %d", messageID, userID)
	return nil
}

func (a *NoopAdapter) FetchChannelHistory(ctx context.Context, channelID int64, since time.Time, limit int) ([]Message, error) {
	a.logger.Debugf("noop adapter: FetchChannelHistory %d", channelID)
	return nil, nil
}

func (a *NoopAdapter) ApplyTimeout(ctx context.Context, guildID, userID int64, duration time.Duration, reason string) error {
	a.logger.Infof("noop adapter: ApplyTimeout %s on %d in %d (%s)", duration, userID, guildID, reason)
	return nil
}

func (a *NoopAdapter) SendChannelMessage(ctx context.Context, channelID int64, payload Payload) (int64, error) {
	id := a.id()
	a.logger.Debugf("noop adapter: SendChannelMessage to %d: %s", channelID, payload.Title)
	return id, nil
}

func (a *NoopAdapter) ResolveGuild(ctx context.Context, guildID int64) (*GuildInfo, error) {
	return &GuildInfo{ID: guildID, Name: "guild"}, nil
}

func (a *NoopAdapter) ResolveMember(ctx context.Context, guildID, userID int64) (*MemberInfo, error) {
	return &MemberInfo{UserID: userID}, nil
}

func (a *NoopAdapter) WaitReady(ctx context.Context, timeout time.Duration) error {
	return nil
}
