package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigild/vigil/pkg/models"
)

func TestParseMention(t *testing.T) {
	tests := []struct {
		arg  string
		id   int64
		fail bool
	}{
		{"<@2000>", 2000, false},
		{"<@!2000>", 2000, false},
		{"2000", 2000, false},
		{"@someone", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		id, err := parseMention(tt.arg)
		if tt.fail {
			assert.Error(t, err, tt.arg)
			continue
		}
		assert.NoError(t, err, tt.arg)
		assert.Equal(t, tt.id, id, tt.arg)
	}
}

func TestErrorEmbedTitles(t *testing.T) {
	tests := []struct {
		err   error
		title string
	}{
		{models.ErrNotRegistered, "❌ Not registered"},
		{models.ErrNotAuthorized, "❌ Not allowed"},
		{models.ErrOnCooldown, "⏳ On cooldown"},
		{models.ErrDuplicateVote, "❌ Already voted"},
		{models.ErrReportClosed, "❌ Report closed"},
		{models.ErrNoSlotAvailable, "❌ No longer available"},
		{errors.New("boom"), "Something went wrong"},
	}

	for _, tt := range tests {
		payload := errorEmbed(tt.err)
		assert.Equal(t, tt.title, payload.Title)
	}
}

func TestErrorEmbedQuotaHint(t *testing.T) {
	payload := errorEmbed(&models.QuotaError{
		GuildID: 1, Status: models.ReportPending,
		Count: 5, Limit: 5, PremiumWouldAllow: true,
	})
	assert.Equal(t, "❌ Quota exceeded", payload.Title)
	assert.Contains(t, payload.Body, "premium plan would have accepted")
}
