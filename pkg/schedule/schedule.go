// Package schedule manages scheduled rules that invoke a target function,
// backed by Amazon EventBridge rules and Lambda invoke permissions.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/JaimeStill/curator/pkg/awsclient"
)

const (
	invokeAction    = "lambda:InvokeFunction"
	eventsPrincipal = "events.amazonaws.com"
)

// RuleInput describes a rule to create or update. When the target fields
// are all empty only the rule itself is written; the target binding and
// invoke permission are left untouched. TargetID or StatementID without
// TargetARN is rejected.
type RuleInput struct {
	Name               string
	Description        string
	ScheduleExpression string
	TargetARN          string
	TargetID           string
	SourceID           string
	StatementID        string
}

// DeleteInput identifies a rule and the target binding and permission to remove with it.
type DeleteInput struct {
	Name        string
	TargetID    string
	TargetARN   string
	StatementID string
}

// System creates, updates, and deletes scheduled rules.
type System interface {
	// PutRule creates or updates a rule and returns its ARN.
	PutRule(ctx context.Context, in RuleInput) (string, error)
	// DeleteRule removes the target binding, the invoke permission, and the rule.
	DeleteRule(ctx context.Context, in DeleteInput) error
}

// EventsAPI is the subset of the EventBridge client the gateway uses.
type EventsAPI interface {
	PutRule(ctx context.Context, in *eventbridge.PutRuleInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, in *eventbridge.PutTargetsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	RemoveTargets(ctx context.Context, in *eventbridge.RemoveTargetsInput, opts ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, in *eventbridge.DeleteRuleInput, opts ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// PermissionsAPI is the subset of the Lambda client the gateway uses.
type PermissionsAPI interface {
	AddPermission(ctx context.Context, in *lambda.AddPermissionInput, opts ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
	RemovePermission(ctx context.Context, in *lambda.RemovePermissionInput, opts ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error)
}

type gateway struct {
	events      EventsAPI
	permissions PermissionsAPI
	logger      *slog.Logger
}

// New creates a gateway over the given EventBridge and Lambda clients.
func New(events EventsAPI, permissions PermissionsAPI, logger *slog.Logger) System {
	return &gateway{
		events:      events,
		permissions: permissions,
		logger:      logger.With("system", "schedule"),
	}
}

// NewFromSession creates a gateway with SDK clients built from session.
func NewFromSession(s *awsclient.Session, logger *slog.Logger) System {
	events := eventbridge.NewFromConfig(s.Config, func(o *eventbridge.Options) {
		o.BaseEndpoint = s.BaseEndpoint()
	})
	permissions := lambda.NewFromConfig(s.Config, func(o *lambda.Options) {
		o.BaseEndpoint = s.BaseEndpoint()
	})
	return New(events, permissions, logger)
}

func (g *gateway) PutRule(ctx context.Context, in RuleInput) (string, error) {
	if in.Name == "" {
		return "", ErrRuleNameRequired
	}

	fail := func(step string, err error) (string, error) {
		return "", &GatewayError{Op: "put", Rule: in.Name, Step: step, Err: err}
	}

	if in.TargetARN == "" && (in.TargetID != "" || in.StatementID != "") {
		return fail("put targets", ErrTargetRequired)
	}

	out, err := g.events.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(in.Name),
		Description:        aws.String(in.Description),
		ScheduleExpression: aws.String(in.ScheduleExpression),
		State:              ebtypes.RuleStateEnabled,
	})
	if err != nil {
		return fail("put rule", err)
	}
	ruleARN := aws.ToString(out.RuleArn)

	if in.TargetARN == "" {
		g.logger.Info("rule put", "rule", in.Name, "arn", ruleARN)
		return ruleARN, nil
	}

	input, err := json.Marshal(map[string]string{"sourceId": in.SourceID})
	if err != nil {
		return fail("put targets", err)
	}

	targets, err := g.events.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule: aws.String(in.Name),
		Targets: []ebtypes.Target{{
			Id:    aws.String(in.TargetID),
			Arn:   aws.String(in.TargetARN),
			Input: aws.String(string(input)),
		}},
	})
	if err != nil {
		return fail("put targets", err)
	}
	if targets.FailedEntryCount > 0 {
		return fail("put targets", failedEntry(targets.FailedEntries))
	}

	_, err = g.permissions.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(in.TargetARN),
		StatementId:  aws.String(in.StatementID),
		Action:       aws.String(invokeAction),
		Principal:    aws.String(eventsPrincipal),
		SourceArn:    aws.String(ruleARN),
	})
	if err != nil {
		if !isConflict(err) {
			return fail("add permission", err)
		}
		// An existing statement with this id is accepted as already granted.
		g.logger.Warn("invoke permission already exists", "rule", in.Name, "statement", in.StatementID)
	}

	g.logger.Info("rule put", "rule", in.Name, "arn", ruleARN, "target", in.TargetARN)
	return ruleARN, nil
}

func (g *gateway) DeleteRule(ctx context.Context, in DeleteInput) error {
	if in.Name == "" {
		return ErrRuleNameRequired
	}

	fail := func(step string, err error) error {
		return &GatewayError{Op: "delete", Rule: in.Name, Step: step, Err: err}
	}

	if in.TargetID != "" {
		out, err := g.events.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule: aws.String(in.Name),
			Ids:  []string{in.TargetID},
		})
		if err != nil {
			return fail("remove targets", err)
		}
		if out.FailedEntryCount > 0 {
			return fail("remove targets", fmt.Errorf("%d target(s) not removed", out.FailedEntryCount))
		}
	}

	if in.TargetARN != "" && in.StatementID != "" {
		_, err := g.permissions.RemovePermission(ctx, &lambda.RemovePermissionInput{
			FunctionName: aws.String(in.TargetARN),
			StatementId:  aws.String(in.StatementID),
		})
		if err != nil {
			return fail("remove permission", err)
		}
	}

	if _, err := g.events.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(in.Name),
	}); err != nil {
		return fail("delete rule", err)
	}

	g.logger.Info("rule deleted", "rule", in.Name)
	return nil
}

func failedEntry(entries []ebtypes.PutTargetsResultEntry) error {
	if len(entries) == 0 {
		return errors.New("target rejected")
	}
	e := entries[0]
	return fmt.Errorf("target %s rejected: %s: %s",
		aws.ToString(e.TargetId),
		aws.ToString(e.ErrorCode),
		aws.ToString(e.ErrorMessage),
	)
}

func isConflict(err error) bool {
	var conflict *lambdatypes.ResourceConflictException
	if errors.As(err, &conflict) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceConflictException"
	}
	return false
}
