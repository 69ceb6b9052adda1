package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SagaStep is one forward action of a saga and the action that undoes it.
// Compensate may be nil when the step needs no undo.
type SagaStep struct {
	Name       string
	Forward    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// SagaError reports the failed step and the outcome of compensating the
// steps that had completed before it.
type SagaError struct {
	Step            string
	Err             error
	Compensated     []string
	CompensationErr error
}

func (e *SagaError) Error() string {
	msg := fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf("; compensation failed: %v", e.CompensationErr)
	}
	return msg
}

func (e *SagaError) Unwrap() []error {
	if e.CompensationErr != nil {
		return []error{e.Err, e.CompensationErr}
	}
	return []error{e.Err}
}

// Saga runs steps strictly in order. When a step fails, the completed steps
// are compensated exactly once each, in reverse order.
type Saga struct {
	name   string
	steps  []SagaStep
	logger *zap.Logger
}

func NewSaga(name string, logger *zap.Logger, steps ...SagaStep) *Saga {
	return &Saga{name: name, steps: steps, logger: logger}
}

func (s *Saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		err := step.Forward(ctx)
		if err == nil {
			continue
		}

		sagaErr := &SagaError{Step: step.Name, Err: err}
		s.logger.Warn("saga step failed", zap.String("saga", s.name), zap.String("step", step.Name), zap.Error(err))

		// Compensation must run even if the caller gave up.
		compCtx := context.WithoutCancel(ctx)
		var compErrs []error
		for j := i - 1; j >= 0; j-- {
			done := s.steps[j]
			if done.Compensate == nil {
				continue
			}
			if cerr := done.Compensate(compCtx); cerr != nil {
				s.logger.Error("CRITICAL: saga compensation failed",
					zap.String("saga", s.name), zap.String("step", done.Name), zap.Error(cerr))
				compErrs = append(compErrs, fmt.Errorf("compensate %s: %w", done.Name, cerr))
				continue
			}
			sagaErr.Compensated = append(sagaErr.Compensated, done.Name)
		}
		sagaErr.CompensationErr = errors.Join(compErrs...)
		return sagaErr
	}
	return nil
}
