package schedule

import (
	"context"
	"fmt"
	"log/slog"
)

type local struct {
	logger *slog.Logger
}

// NewLocal returns a gateway that records nothing externally and reports a
// synthetic rule ARN. Used when AWS integration is disabled.
func NewLocal(logger *slog.Logger) System {
	return &local{logger: logger.With("system", "schedule", "mode", "local")}
}

// LocalRuleARN is the ARN the local gateway reports for a rule name.
func LocalRuleARN(name string) string {
	return fmt.Sprintf("arn:aws:events:local:000000000000:rule/%s", name)
}

func (l *local) PutRule(_ context.Context, in RuleInput) (string, error) {
	if in.Name == "" {
		return "", ErrRuleNameRequired
	}
	l.logger.Info("rule put", "rule", in.Name, "expression", in.ScheduleExpression, "target", in.TargetARN)
	return LocalRuleARN(in.Name), nil
}

func (l *local) DeleteRule(_ context.Context, in DeleteInput) error {
	if in.Name == "" {
		return ErrRuleNameRequired
	}
	l.logger.Info("rule deleted", "rule", in.Name)
	return nil
}
