package sources

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/curator/pkg/notify"
	"github.com/JaimeStill/curator/pkg/schedule"
)

// Reconciler applies the external side effects implied by a source's
// automation state. Each entry point runs its steps in order: the schedule
// mutation, then the notification. It never persists; callers save the
// source only after the reconciler returns.
//
// Schedule failures are returned as *schedule.GatewayError and leave the
// source's rule ARN untouched. Notification failures are returned as
// *NotificationSendError after the source has already been updated to
// reflect the completed schedule mutation.
type Reconciler struct {
	scheduler    schedule.System
	notifier     notify.System
	retrievalARN string
	logger       *slog.Logger
}

// NewReconciler creates a Reconciler. Rules it creates target retrievalARN
// with the deterministic target and statement ids of their source. Only the
// local gateway accepts an empty retrievalARN.
func NewReconciler(
	scheduler schedule.System,
	notifier notify.System,
	retrievalARN string,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		scheduler:    scheduler,
		notifier:     notifier,
		retrievalARN: retrievalARN,
		logger:       logger.With("system", "reconciler"),
	}
}

// OnCreate puts the rule for a new source with a schedule and records the
// returned ARN on src.
func (r *Reconciler) OnCreate(ctx context.Context, src *Source) error {
	if src.schedule() == nil {
		return nil
	}

	if err := r.putRule(ctx, src); err != nil {
		return err
	}

	return r.notify(ctx, src, NotificationAdd)
}

// OnUpdate reconciles next against prev. A schedule change puts or deletes
// the rule; a rename of a scheduled source refreshes only the rule's
// description. Parser-only changes touch nothing external.
func (r *Reconciler) OnUpdate(ctx context.Context, prev, next *Source, changes ChangeSet) error {
	if changes.Automation == ScheduleChanged {
		if next.schedule() != nil {
			if err := r.putRule(ctx, next); err != nil {
				return err
			}
			return r.notify(ctx, next, NotificationAdd)
		}

		if prev.RuleARN() != "" {
			if err := r.deleteRule(ctx, prev); err != nil {
				return err
			}
		}
		if next.Automation != nil {
			next.Automation.Schedule = nil
			next.normalize()
		}
		return r.notify(ctx, next, NotificationRemove)
	}

	if changes.NameChanged && next.RuleARN() != "" {
		sch := next.schedule()
		_, err := r.scheduler.PutRule(ctx, schedule.RuleInput{
			Name:               RuleName(next.ID),
			Description:        RuleDescription(next.Name),
			ScheduleExpression: sch.AWSScheduleExpression,
		})
		if err != nil {
			r.logger.Error("rule description update failed", "id", next.ID, "error", err)
			return err
		}
		r.logger.Info("rule description updated", "id", next.ID, "name", next.Name)
	}

	return nil
}

// OnDelete removes the live rule of a source about to be deleted. The
// caller must not delete the source when an error is returned for a
// schedule failure.
func (r *Reconciler) OnDelete(ctx context.Context, src *Source) error {
	if src.RuleARN() == "" {
		return nil
	}

	if err := r.deleteRule(ctx, src); err != nil {
		return err
	}

	return r.notify(ctx, src, NotificationRemove)
}

func (r *Reconciler) putRule(ctx context.Context, src *Source) error {
	sch := src.schedule()
	in := schedule.RuleInput{
		Name:               RuleName(src.ID),
		Description:        RuleDescription(src.Name),
		ScheduleExpression: sch.AWSScheduleExpression,
		TargetARN:          r.retrievalARN,
		TargetID:           RuleTargetID(src.ID),
		SourceID:           src.ID.String(),
		StatementID:        StatementID(src.ID),
	}

	arn, err := r.scheduler.PutRule(ctx, in)
	if err != nil {
		r.logger.Error("rule put failed", "id", src.ID, "kind", KindGateway, "error", err)
		return err
	}

	sch.AWSRuleARN = arn
	r.logger.Info("rule put", "id", src.ID, "arn", arn, "expression", sch.AWSScheduleExpression)
	return nil
}

func (r *Reconciler) deleteRule(ctx context.Context, src *Source) error {
	in := schedule.DeleteInput{
		Name:        RuleName(src.ID),
		TargetID:    RuleTargetID(src.ID),
		TargetARN:   r.retrievalARN,
		StatementID: StatementID(src.ID),
	}

	if err := r.scheduler.DeleteRule(ctx, in); err != nil {
		r.logger.Error("rule delete failed", "id", src.ID, "kind", KindGateway, "error", err)
		return err
	}

	r.logger.Info("rule deleted", "id", src.ID)
	return nil
}

func (r *Reconciler) notify(ctx context.Context, src *Source, t NotificationType) error {
	if len(src.NotificationRecipients) == 0 {
		return nil
	}

	msg, err := RenderNotification(t, src)
	if err != nil {
		return &NotificationSendError{Type: t, Err: err}
	}

	if _, err := r.notifier.Send(ctx, src.NotificationRecipients, msg.Subject, msg.Body); err != nil {
		r.logger.Error("notification failed", "id", src.ID, "type", t, "kind", KindNotification, "error", err)
		return &NotificationSendError{Type: t, Err: err}
	}

	r.logger.Info("notification sent", "id", src.ID, "type", t, "recipients", len(src.NotificationRecipients))
	return nil
}
