package actions

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Engine walks an action tree depth-first, pre-order, short-circuiting
// on the first terminal outcome. Entries from every visited node are
// merged into one aggregated result in visit order.
type Engine struct {
	logger ectologger.Logger
}

func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run executes the tree rooted at root and returns the aggregated
// outcome. Collaborator failures become a terminal FAILED_UPDATE
// outcome; structural and fatal errors propagate to the caller.
func (e *Engine) Run(ctx context.Context, root Action) (*Result, error) {
	aggregated := NewOKResult()
	_, err := e.run(ctx, root, aggregated)
	if err != nil {
		return nil, err
	}
	return aggregated, nil
}

func (e *Engine) run(ctx context.Context, action Action, aggregated *Result) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "action."+action.Name())
	defer span.End()

	start := time.Now()
	result, err := action.Perform(ctx)
	if err != nil {
		if bramblerrors.IsCollaboratorError(err) {
			// external fault: surface a generic entry, never the cause
			metrics.ObserveAction(action.Name(), "error", time.Since(start))
			e.logger.WithContext(ctx).WithError(err).Errorf("action %s failed on collaborator call", action.Name())
			aggregated.Status = StatusFailedUpdate
			aggregated.Append(newCollaboratorEntry())
			return true, nil
		}
		metrics.ObserveAction(action.Name(), "error", time.Since(start))
		return true, err
	}
	metrics.ObserveAction(action.Name(), string(result.Status), time.Since(start))

	aggregated.Append(result.Entries...)
	if result.DoubleRecordKey != "" {
		aggregated.DoubleRecordKey = result.DoubleRecordKey
	}
	if result.Status.IsTerminal() {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"action": action.Name(),
			"status": result.Status,
		}).Infof("action tree stopped")
		aggregated.Status = result.Status
		return true, nil
	}
	if result.Status == StatusValidateOnly && aggregated.Status == StatusOK {
		aggregated.Status = StatusValidateOnly
	}

	// index loop: Perform may have appended, and children may append to
	// themselves while we walk them
	children := action.Children()
	for i := 0; i < len(*children); i++ {
		stopped, err := e.run(ctx, (*children)[i], aggregated)
		if err != nil {
			return true, err
		}
		if stopped {
			return true, nil
		}
	}
	return false, nil
}
