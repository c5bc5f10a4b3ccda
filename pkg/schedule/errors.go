package schedule

import (
	"errors"
	"fmt"
)

// ErrRuleNameRequired indicates a put or delete was requested without a rule name.
var ErrRuleNameRequired = errors.New("rule name required")

// ErrTargetRequired indicates target or permission ids were given without
// the function they refer to.
var ErrTargetRequired = errors.New("target function arn required")

// GatewayError reports a failed external schedule mutation. Step names the
// call that failed; earlier steps of the same operation have already taken
// effect and are not rolled back.
type GatewayError struct {
	Op   string
	Rule string
	Step string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("schedule %s %s: %s: %v", e.Op, e.Rule, e.Step, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
