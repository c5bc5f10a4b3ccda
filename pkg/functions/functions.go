// Package functions invokes and lists AWS Lambda functions.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/JaimeStill/curator/pkg/awsclient"
)

// ErrFunctionRequired indicates Invoke was called without a function ARN.
var ErrFunctionRequired = errors.New("function arn required")

// InvocationError reports a function that ran but returned an error result.
type InvocationError struct {
	Function string
	Type     string
	Payload  []byte
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("function %s failed: %s: %s", e.Function, e.Type, e.Payload)
}

// Function describes a deployed function.
type Function struct {
	Name         string `json:"name"`
	ARN          string `json:"arn"`
	Description  string `json:"description,omitempty"`
	Runtime      string `json:"runtime,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// System invokes functions synchronously and lists them.
type System interface {
	// Invoke calls the function with payload marshaled as JSON and returns its response payload.
	Invoke(ctx context.Context, arn string, payload any) ([]byte, error)
	// List returns the functions whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]Function, error)
}

// LambdaAPI is the subset of the Lambda client the system uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, opts ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
	lambda.ListFunctionsAPIClient
}

type system struct {
	client LambdaAPI
	logger *slog.Logger
}

// New creates a function system over the given Lambda client.
func New(client LambdaAPI, logger *slog.Logger) System {
	return &system{
		client: client,
		logger: logger.With("system", "functions"),
	}
}

// NewFromSession creates a function system with a client built from session.
func NewFromSession(s *awsclient.Session, logger *slog.Logger) System {
	client := lambda.NewFromConfig(s.Config, func(o *lambda.Options) {
		o.BaseEndpoint = s.BaseEndpoint()
	})
	return New(client, logger)
}

func (s *system) Invoke(ctx context.Context, arn string, payload any) ([]byte, error) {
	if arn == "" {
		return nil, ErrFunctionRequired
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	out, err := s.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(arn),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", arn, err)
	}

	if out.FunctionError != nil {
		return nil, &InvocationError{
			Function: arn,
			Type:     aws.ToString(out.FunctionError),
			Payload:  out.Payload,
		}
	}

	s.logger.Info("function invoked", "function", arn, "status", out.StatusCode)
	return out.Payload, nil
}

func (s *system) List(ctx context.Context, prefix string) ([]Function, error) {
	result := make([]Function, 0)

	pager := lambda.NewListFunctionsPaginator(s.client, &lambda.ListFunctionsInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}

		for _, fn := range page.Functions {
			name := aws.ToString(fn.FunctionName)
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			result = append(result, Function{
				Name:         name,
				ARN:          aws.ToString(fn.FunctionArn),
				Description:  aws.ToString(fn.Description),
				Runtime:      string(fn.Runtime),
				LastModified: aws.ToString(fn.LastModified),
			})
		}
	}

	return result, nil
}

type local struct {
	logger *slog.Logger
}

// NewLocal returns a system that logs invocations and lists nothing.
func NewLocal(logger *slog.Logger) System {
	return &local{logger: logger.With("system", "functions", "mode", "local")}
}

func (l *local) Invoke(_ context.Context, arn string, payload any) ([]byte, error) {
	if arn == "" {
		return nil, ErrFunctionRequired
	}
	l.logger.Info("function invoked", "function", arn, "payload", payload)
	return []byte(`{}`), nil
}

func (l *local) List(context.Context, string) ([]Function, error) {
	return []Function{}, nil
}
