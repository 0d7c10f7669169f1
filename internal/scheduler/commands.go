package scheduler

import (
	"context"
	"fmt"
	"strings"

	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/portfolio"
)

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	// Group chats address commands as /status@BotName.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/status":
		return s.statusText()
	case "/summary":
		summary := s.LatestSummary()
		if summary == nil {
			return "No cycle has finished yet."
		}
		return notifier.FormatSummary(summary)
	case "/analyze":
		if len(fields) < 2 {
			return "Usage: /analyze TICKER"
		}
		inst := portfolio.Find(s.instruments, strings.ToUpper(fields[1]))
		res := s.AnalyzeOne(ctx, inst)
		return notifier.FormatRecommendation(res)
	default:
		return notifier.HelpText()
	}
}

func (s *Scheduler) statusText() string {
	st := s.Status()
	var b strings.Builder
	b.WriteString("🤖 <b>Scheduler status</b>\n\n")
	state := "idle"
	if st.Running {
		state = "running a cycle"
	}
	b.WriteString(fmt.Sprintf("State: %s\n", state))
	b.WriteString(fmt.Sprintf("Instruments: %d\n", st.Instruments))
	b.WriteString(fmt.Sprintf("Cycles completed: %d\n", st.Cycles))
	if !st.LastCycle.IsZero() {
		b.WriteString(fmt.Sprintf("Last cycle: %s\n", st.LastCycle.Format("2006-01-02 15:04:05")))
	}
	if !st.NextRun.IsZero() {
		b.WriteString(fmt.Sprintf("Next run: %s\n", st.NextRun.Format("2006-01-02 15:04:05")))
	}
	return b.String()
}
