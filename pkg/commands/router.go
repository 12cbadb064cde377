package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/models"
	"github.com/vigild/vigil/pkg/services"
)

// Router maps inbound chat commands and button interactions to the engine's
// services, and turns domain errors into short user-facing embeds.
type Router struct {
	registration *services.RegistrationService
	pipeline     *services.PipelineService
	distributor  *services.Distributor
	verdict      *services.VerdictEngine
	duty         *services.DutyService
	captcha      *services.CaptchaService
	stats        *services.StatsService
}

// NewRouter creates a new command router
func NewRouter(registration *services.RegistrationService, pipeline *services.PipelineService, distributor *services.Distributor, verdict *services.VerdictEngine, duty *services.DutyService, captcha *services.CaptchaService, stats *services.StatsService) *Router {
	return &Router{
		registration: registration,
		pipeline:     pipeline,
		distributor:  distributor,
		verdict:      verdict,
		duty:         duty,
		captcha:      captcha,
		stats:        stats,
	}
}

// Command is one parsed chat command.
type Command struct {
	Name      string
	Args      []string
	UserID    int64
	Username  string
	GuildID   int64
	ChannelID int64
	// AccountCreatedAt comes from the platform member payload.
	AccountCreatedAt time.Time
}

// Dispatch runs the command and returns the reply embed.
func (r *Router) Dispatch(ctx context.Context, cmd Command) chat.Payload {
	switch cmd.Name {
	case "register":
		return r.register(ctx, cmd)
	case "on-duty":
		return r.onDuty(ctx, cmd)
	case "off-duty":
		return r.offDuty(ctx, cmd)
	case "report":
		return r.report(ctx, cmd)
	case "stats":
		return r.reviewerStats(ctx, cmd)
	default:
		return errorEmbed(fmt.Errorf("unknown command %q", cmd.Name))
	}
}

// Interact handles a button click. The action id encodes the verb and its
// target, e.g. "accept:42" or "vote:42:Serious".
func (r *Router) Interact(ctx context.Context, userID int64, actionID string) chat.Payload {
	parts := strings.Split(actionID, ":")
	switch parts[0] {
	case "accept":
		if len(parts) != 2 {
			return errorEmbed(errors.New("malformed action"))
		}
		reportID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return errorEmbed(errors.New("malformed action"))
		}
		if err := r.distributor.Accept(ctx, reportID, userID); err != nil {
			return errorEmbed(err)
		}
		return chat.Payload{Title: "Review started", Body: "You have 5 minutes to vote."}

	case "dispense":
		if len(parts) != 2 {
			return errorEmbed(errors.New("malformed action"))
		}
		reportID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return errorEmbed(errors.New("malformed action"))
		}
		if err := r.distributor.Dispense(ctx, reportID, userID); err != nil {
			return errorEmbed(err)
		}
		return chat.Payload{Title: "Report dispensed", Body: "You will not receive new reports for 10 minutes."}

	case "vote":
		if len(parts) != 3 {
			return errorEmbed(errors.New("malformed action"))
		}
		reportID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return errorEmbed(errors.New("malformed action"))
		}
		if err := r.verdict.CastVote(ctx, reportID, userID, models.VoteChoice(parts[2])); err != nil {
			return errorEmbed(err)
		}
		return chat.Payload{Title: "Vote recorded", Body: "Thank you for reviewing."}

	case "appeal":
		if len(parts) != 2 {
			return errorEmbed(errors.New("malformed action"))
		}
		if _, err := r.pipeline.Appeal(ctx, parts[1], userID); err != nil {
			return errorEmbed(err)
		}
		return chat.Payload{Title: "Appeal registered", Body: "Your case will be reviewed by additional guardians."}

	case "captcha":
		return errorEmbed(errors.New("answer the activity check with the reply form"))

	default:
		return errorEmbed(fmt.Errorf("unknown action %q", parts[0]))
	}
}

// AnswerCaptcha scores a captcha reply typed into the answer form.
func (r *Router) AnswerCaptcha(ctx context.Context, userID int64, answer string) chat.Payload {
	if err := r.captcha.Answer(ctx, userID, answer); err != nil {
		return errorEmbed(err)
	}
	return chat.Payload{Title: "✅ Activity confirmed", Body: "Thanks, you remain on duty."}
}

func (r *Router) register(ctx context.Context, cmd Command) chat.Payload {
	reviewer, err := r.registration.Register(ctx, cmd.UserID, cmd.Username, cmd.AccountCreatedAt)
	if err != nil {
		return errorEmbed(err)
	}
	return chat.Payload{
		Title: "Registered",
		Body:  fmt.Sprintf("Welcome, %s. You are registered as %s.", reviewer.Username, reviewer.Tier),
	}
}

func (r *Router) onDuty(ctx context.Context, cmd Command) chat.Payload {
	if err := r.duty.StartShift(ctx, cmd.UserID); err != nil {
		return errorEmbed(err)
	}
	return chat.Payload{Title: "On duty", Body: "You are now receiving reports. Points accrue hourly."}
}

func (r *Router) offDuty(ctx context.Context, cmd Command) chat.Payload {
	points, err := r.duty.StopShift(ctx, cmd.UserID)
	if err != nil {
		return errorEmbed(err)
	}
	return chat.Payload{
		Title: "Off duty",
		Body:  fmt.Sprintf("Shift closed. You earned %d point(s).", points),
	}
}

func (r *Router) report(ctx context.Context, cmd Command) chat.Payload {
	if len(cmd.Args) < 2 {
		return errorEmbed(errors.New("usage: report @user reason"))
	}
	accusedID, err := parseMention(cmd.Args[0])
	if err != nil {
		return errorEmbed(err)
	}
	reason := strings.Join(cmd.Args[1:], " ")

	report, err := r.pipeline.Submit(ctx, cmd.UserID, accusedID, cmd.GuildID, cmd.ChannelID, reason)
	if err != nil {
		return errorEmbed(err)
	}
	return chat.Payload{
		Title: "Report received",
		Body:  fmt.Sprintf("Your report was registered under `%s` and will be reviewed by the guardians.", report.Hash),
	}
}

func (r *Router) reviewerStats(ctx context.Context, cmd Command) chat.Payload {
	stats, err := r.stats.Stats(ctx, cmd.UserID)
	if err != nil {
		return errorEmbed(err)
	}
	duty := "off duty"
	if stats.Reviewer.OnDuty {
		duty = "on duty"
	}
	return chat.Payload{
		Title: fmt.Sprintf("Profile — %s", stats.Reviewer.Username),
		Fields: []chat.Field{
			{Name: "Tier", Value: string(stats.Reviewer.Tier)},
			{Name: "Rank", Value: stats.Rank},
			{Name: "Points", Value: strconv.Itoa(stats.Reviewer.Points)},
			{Name: "Experience", Value: fmt.Sprintf("%d (%d/%d to next rank)", stats.Reviewer.Experience, stats.RankXP, stats.RankXPNeeded)},
			{Name: "Status", Value: duty},
		},
	}
}

// parseMention extracts the user id from a <@123> or plain-number mention.
func parseMention(arg string) (int64, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(arg, "<@"), "!"), ">")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, errors.New("could not resolve the mentioned user")
	}
	return id, nil
}

// errorEmbed turns a domain error into the short embed users see.
func errorEmbed(err error) chat.Payload {
	title := "Something went wrong"
	switch {
	case errors.Is(err, models.ErrNotRegistered):
		title = "❌ Not registered"
	case errors.Is(err, models.ErrNotAuthorized):
		title = "❌ Not allowed"
	case errors.Is(err, models.ErrQuotaExceeded):
		title = "❌ Quota exceeded"
		var quota *models.QuotaError
		if errors.As(err, &quota) && quota.PremiumWouldAllow {
			return chat.Payload{
				Title: title,
				Body:  "This server reached its open report limit. A premium plan would have accepted this report.",
			}
		}
	case errors.Is(err, models.ErrOnCooldown):
		title = "⏳ On cooldown"
	case errors.Is(err, models.ErrDuplicateVote):
		title = "❌ Already voted"
	case errors.Is(err, models.ErrReportClosed):
		title = "❌ Report closed"
	case errors.Is(err, models.ErrNoSlotAvailable):
		title = "❌ No longer available"
	}
	return chat.Payload{Title: title, Body: err.Error()}
}
