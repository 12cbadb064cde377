package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/models"
)

const evidenceLineLimit = 100

var mentionPattern = regexp.MustCompile(`<@!?\d+>`)

// RenderEvidence builds the anonymized evidence view a reviewer sees after
// accepting an assignment. The accused is labeled prominently; every other
// participant gets a stable "User N" alias. Mentions inside message bodies
// are rewritten so no identity leaks through. Messages run newest first.
func RenderEvidence(report *models.Report, messages []models.CapturedMessage, displayZone *time.Location) chat.Payload {
	aliases := map[int64]string{report.AccusedID: "🔴 Accused"}
	next := 1

	var lines []string
	for _, msg := range messages {
		if len(lines) >= evidenceLineLimit {
			break
		}

		alias, ok := aliases[msg.AuthorID]
		if !ok {
			alias = fmt.Sprintf("User %d", next)
			aliases[msg.AuthorID] = alias
			next++
		}

		content := mentionPattern.ReplaceAllString(msg.Content, "[User]")
		content = strings.ReplaceAll(content, "\n", " ")

		stamp := msg.SentAt.In(displayZone).Format("02/01 15:04")
		if msg.AuthorID == report.AccusedID {
			lines = append(lines, fmt.Sprintf("🔴 **%s** (%s): %s", alias, stamp, content))
		} else {
			lines = append(lines, fmt.Sprintf("**%s** (%s): %s", alias, stamp, content))
		}

		if msg.AttachmentURLs != "" {
			urls := strings.Split(msg.AttachmentURLs, ",")
			lines = append(lines, fmt.Sprintf("  📎 %d attachment(s)", len(urls)))
		}
	}

	if len(lines) > evidenceLineLimit {
		lines = lines[:evidenceLineLimit]
	}

	body := "No messages were captured for this report."
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}

	return chat.Payload{
		Title: fmt.Sprintf("Report %s — evidence", report.Hash),
		Body:  body,
		Fields: []chat.Field{
			{Name: "Reason", Value: report.Reason},
		},
		Buttons: []chat.Button{
			{ID: fmt.Sprintf("vote:%d:OK", report.ID), Label: "OK!", Style: "secondary"},
			{ID: fmt.Sprintf("vote:%d:Intimidated", report.ID), Label: "Intimidated", Style: "primary"},
			{ID: fmt.Sprintf("vote:%d:Serious", report.ID), Label: "Grave", Style: "danger"},
		},
	}
}
