package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vigild/vigil/pkg/models"
)

func TestRenderEvidenceAnonymizesParticipants(t *testing.T) {
	report := &models.Report{ID: 1, Hash: "abcdef0123456789", AccusedID: 2000, Reason: "flood"}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	messages := []models.CapturedMessage{
		{ReportID: 1, AuthorID: 2000, Content: "you are all idiots", SentAt: now},
		{ReportID: 1, AuthorID: 3000, Content: "hey <@2000> calm down", SentAt: now.Add(-time.Minute)},
		{ReportID: 1, AuthorID: 4000, Content: "reported", SentAt: now.Add(-2 * time.Minute)},
		{ReportID: 1, AuthorID: 3000, Content: "second message", SentAt: now.Add(-3 * time.Minute)},
	}

	payload := RenderEvidence(report, messages, time.UTC)

	assert.Contains(t, payload.Body, "🔴 Accused")
	assert.Contains(t, payload.Body, "User 1")
	assert.Contains(t, payload.Body, "User 2")
	assert.NotContains(t, payload.Body, "2000", "raw ids must not leak")
	assert.NotContains(t, payload.Body, "3000")
	assert.NotContains(t, payload.Body, "<@")
	assert.Contains(t, payload.Body, "[User]", "mentions are rewritten")

	// Aliases are stable: both messages of author 3000 carry the same label.
	assert.Equal(t, 2, strings.Count(payload.Body, "User 1"))
}

func TestRenderEvidenceNewestFirst(t *testing.T) {
	report := &models.Report{ID: 1, Hash: "abcdef0123456789", AccusedID: 2000, Reason: "flood"}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// The store hands messages newest first; the view keeps that order.
	messages := []models.CapturedMessage{
		{ReportID: 1, AuthorID: 3000, Content: "newest", SentAt: now},
		{ReportID: 1, AuthorID: 3000, Content: "oldest", SentAt: now.Add(-time.Hour)},
	}

	payload := RenderEvidence(report, messages, time.UTC)
	assert.Less(t, strings.Index(payload.Body, "newest"), strings.Index(payload.Body, "oldest"))
}

func TestRenderEvidenceCapsLines(t *testing.T) {
	report := &models.Report{ID: 1, Hash: "abcdef0123456789", AccusedID: 2000, Reason: "flood"}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var messages []models.CapturedMessage
	for i := 0; i < 150; i++ {
		messages = append(messages, models.CapturedMessage{
			ReportID: 1, AuthorID: 3000, Content: "line", SentAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}

	payload := RenderEvidence(report, messages, time.UTC)
	assert.LessOrEqual(t, len(strings.Split(payload.Body, "\n")), evidenceLineLimit)
}

func TestRenderEvidenceEmpty(t *testing.T) {
	report := &models.Report{ID: 1, Hash: "abcdef0123456789", AccusedID: 2000, Reason: "flood"}
	payload := RenderEvidence(report, nil, time.UTC)
	assert.Contains(t, payload.Body, "No messages were captured")
}
