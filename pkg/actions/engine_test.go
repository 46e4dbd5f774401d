package actions

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bramblerrors "github.com/Ramsey-B/bramble/pkg/errors"
	"github.com/Ramsey-B/bramble/pkg/models"
)

type spyAction struct {
	BaseAction
	name      string
	result    *Result
	err       error
	performed int
	onPerform func(a *spyAction)
}

func (a *spyAction) Name() string { return a.name }

func (a *spyAction) Perform(ctx context.Context) (*Result, error) {
	a.performed++
	if a.onPerform != nil {
		a.onPerform(a)
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.result != nil {
		return a.result, nil
	}
	return NewOKResult(), nil
}

func newSpy(name string, children ...Action) *spyAction {
	a := &spyAction{name: name}
	a.Append(children...)
	return a
}

func testEngine() *Engine {
	return NewEngine(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEngineRunsDepthFirstPreOrder(t *testing.T) {
	var order []string
	visit := func(a *spyAction) { order = append(order, a.name) }

	leafA := newSpy("a")
	leafA.onPerform = visit
	leafB := newSpy("b")
	leafB.onPerform = visit
	parent := newSpy("parent", leafA, leafB)
	parent.onPerform = visit
	leafC := newSpy("c")
	leafC.onPerform = visit
	root := newSpy("root", parent, leafC)
	root.onPerform = visit

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, []string{"root", "parent", "a", "b", "c"}, order)
}

func TestEngineShortCircuitsOnTerminalStatus(t *testing.T) {
	failing := newSpy("failing")
	failing.result = NewFailedValidationResult(models.NewErrorEntry("bad field"))
	neverRunChild := newSpy("never-child")
	failing.Append(neverRunChild)
	neverRunSibling := newSpy("never-sibling")
	root := newSpy("root", newSpy("first"), failing, neverRunSibling)

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, StatusFailedValidation, result.Status)
	assert.Equal(t, 1, failing.performed)
	assert.Zero(t, neverRunChild.performed)
	assert.Zero(t, neverRunSibling.performed)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "bad field", result.Entries[0].Message)
}

func TestEngineMergesEntriesInVisitOrder(t *testing.T) {
	first := newSpy("first")
	first.result = &Result{Status: StatusOK, Entries: []models.MessageEntry{models.NewWarningEntry("one")}}
	second := newSpy("second")
	second.result = &Result{Status: StatusOK, Entries: []models.MessageEntry{models.NewWarningEntry("two")}}
	root := newSpy("root", first, second)
	root.result = &Result{Status: StatusOK, Entries: []models.MessageEntry{models.NewWarningEntry("zero")}}

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "zero", result.Entries[0].Message)
	assert.Equal(t, "one", result.Entries[1].Message)
	assert.Equal(t, "two", result.Entries[2].Message)
}

func TestEngineRunsChildrenAppendedDuringPerform(t *testing.T) {
	appended := newSpy("appended")
	root := newSpy("root")
	root.onPerform = func(a *spyAction) { a.Append(appended) }

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, 1, appended.performed)
}

func TestEngineConvertsCollaboratorErrorToTerminalOutcome(t *testing.T) {
	failing := newSpy("failing")
	failing.err = bramblerrors.NewCollaboratorError("rawrepo", "save", assert.AnError)
	sibling := newSpy("sibling")
	root := newSpy("root", failing, sibling)

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, StatusFailedUpdate, result.Status)
	assert.Zero(t, sibling.performed)
	require.Len(t, result.Entries, 1)
	// the underlying fault must not leak to the caller
	assert.NotContains(t, result.Entries[0].Message, assert.AnError.Error())
}

func TestEnginePropagatesStructuralErrors(t *testing.T) {
	failing := newSpy("failing")
	failing.err = bramblerrors.NewStructuralErrorf("self-parented")
	root := newSpy("root", failing)

	_, err := testEngine().Run(context.Background(), root)
	require.Error(t, err)
	assert.True(t, bramblerrors.IsStructuralError(err))
}

func TestEngineKeepsValidateOnlyNonTerminal(t *testing.T) {
	validateOnly := newSpy("validate-only")
	validateOnly.result = NewValidateOnlyResult()
	after := newSpy("after")
	root := newSpy("root", validateOnly, after)

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, StatusValidateOnly, result.Status)
	assert.Equal(t, 1, after.performed)
}

func TestEngineCarriesDoubleRecordKey(t *testing.T) {
	keyed := newSpy("keyed")
	keyed.result = &Result{Status: StatusFailedValidation, DoubleRecordKey: "7f3d"}
	root := newSpy("root", keyed)

	result, err := testEngine().Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "7f3d", result.DoubleRecordKey)
	assert.Equal(t, StatusFailedValidation, result.Status)
}
