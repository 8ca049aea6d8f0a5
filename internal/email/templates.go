package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

func RenderLimitExceeded(account *domain.Account, disabled []*domain.Schedule, limit, active int) Message {
	var names []string
	for _, s := range disabled {
		names = append(names, fmt.Sprintf("<li>%s (canvas %s)</li>", s.ID, s.CanvasID))
	}
	return Message{
		Subject: "Some of your schedules were paused",
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your plan allows %d active schedules, but your account had %d. The most
recently created schedules were disabled to bring you back under the limit:</p>
<ul>%s</ul>
<p>Upgrade your plan to re-enable them.</p>`,
			displayName(account), limit, active, strings.Join(names, ""),
		),
	}
}

func RenderRunSuccess(account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) Message {
	return Message{
		Subject: fmt.Sprintf("Workflow %q ran successfully", rec.WorkflowTitle),
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your scheduled workflow <strong>%s</strong> completed successfully and used
%d credits.</p>%s`,
			displayName(account), rec.WorkflowTitle, rec.CreditUsed, nextRunLine(nextRunAt),
		),
	}
}

func RenderRunFailure(account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) Message {
	return Message{
		Subject: fmt.Sprintf("Workflow %q failed", rec.WorkflowTitle),
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your scheduled workflow <strong>%s</strong> failed: %s.</p>
<p>Open the execution history to %s.</p>%s`,
			displayName(account), rec.WorkflowTitle, rec.FailureReason,
			suggestedAction(rec.FailureReason), nextRunLine(nextRunAt),
		),
	}
}

// suggestedAction mirrors the action button shown in the execution history.
func suggestedAction(reason domain.FailureReason) string {
	switch reason {
	case domain.FailureInsufficientCredits, domain.FailureScheduleLimit:
		return "upgrade your plan"
	default:
		return "debug the run"
	}
}

func nextRunLine(nextRunAt *time.Time) string {
	if nextRunAt == nil {
		return ""
	}
	return fmt.Sprintf("<p>Next run: %s.</p>", nextRunAt.Format(time.RFC1123))
}

func displayName(account *domain.Account) string {
	if account.Name != "" {
		return account.Name
	}
	return account.Email
}
