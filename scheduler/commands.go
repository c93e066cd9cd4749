package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/services"
	"rentwatch/storage"
)

type CommandQueue interface {
	GetPendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error
}

// CommandProcessor applies queued control commands to the scheduler and
// tells the user about the outcome.
type CommandProcessor struct {
	queue     CommandQueue
	sched     *Scheduler
	criteria  services.CriteriaStore
	transport notify.Transport
	sources   []notify.SourceLink
}

func NewCommandProcessor(queue CommandQueue, sched *Scheduler, criteria services.CriteriaStore, transport notify.Transport) *CommandProcessor {
	return &CommandProcessor{
		queue:     queue,
		sched:     sched,
		criteria:  criteria,
		transport: transport,
	}
}

// SetSources sets the site list reported by list_sources.
func (p *CommandProcessor) SetSources(sources []notify.SourceLink) {
	p.sources = sources
}

// Poll checks the queue every interval until ctx is done.
func (p *CommandProcessor) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *CommandProcessor) ProcessPending(ctx context.Context) {
	cmds, err := p.queue.GetPendingCommands(ctx)
	if err != nil {
		slog.Error("error getting commands", "error", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		slog.Info("processing command", "command", cmd.Command, "id", cmd.ID)
		if err := p.Handle(ctx, cmd); err != nil {
			slog.Error("command failed", "command", cmd.Command, "id", cmd.ID, "error", err)
		}
		if err := p.queue.MarkCommandProcessed(ctx, cmd.ID); err != nil {
			slog.Error("error marking command processed", "id", cmd.ID, "error", err)
		}
	}
}

func (p *CommandProcessor) Handle(ctx context.Context, cmd *models.Command) error {
	params, err := storage.ParseCommandParams(cmd)
	if err != nil {
		return fmt.Errorf("parse params: %w", err)
	}
	if params.UserID == 0 {
		return fmt.Errorf("%s: missing user_id", cmd.Command)
	}
	userID := params.UserID

	switch cmd.Command {
	case models.CmdStartMonitoring:
		started, err := p.sched.Start(userID)
		if err != nil {
			return err
		}
		if started {
			p.reply(ctx, userID, notify.StartedText(p.sched.Interval()))
		} else {
			p.reply(ctx, userID, notify.AlreadyRunningText)
		}
		return nil

	case models.CmdStopMonitoring:
		stopped, err := p.sched.Stop(ctx, userID)
		if stopped {
			p.reply(ctx, userID, notify.StoppedText)
		} else if err == nil {
			p.reply(ctx, userID, notify.NotRunningText)
		}
		return err

	case models.CmdSetCriteria:
		if params.Criteria == nil {
			return fmt.Errorf("set_criteria: missing criteria")
		}
		if err := params.Criteria.Validate(); err != nil {
			return err
		}
		if err := p.criteria.PutCriteria(ctx, userID, *params.Criteria); err != nil {
			return fmt.Errorf("store criteria: %w", err)
		}
		// Markers from the old filter say nothing about the new result
		// list, so the next tick starts over with a capped first poll.
		return p.sched.Reset(ctx, userID)

	case models.CmdGetCriteria:
		c, err := p.criteria.GetCriteria(ctx, userID)
		if err != nil {
			return fmt.Errorf("load criteria: %w", err)
		}
		p.reply(ctx, userID, notify.FormatCriteria(c))
		return nil

	case models.CmdListSources:
		p.reply(ctx, userID, notify.FormatSources(p.sources))
		return nil

	case models.CmdTickNow:
		if !p.sched.TickNow(userID) {
			return fmt.Errorf("tick_now: user %d is not being monitored", userID)
		}
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

func (p *CommandProcessor) reply(ctx context.Context, userID int64, text string) {
	if p.transport == nil {
		return
	}
	if err := p.transport.Send(ctx, userID, text); err != nil {
		slog.Warn("reply failed", "user_id", userID, "error", err)
	}
}
