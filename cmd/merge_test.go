package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shcov.dev/pkg/shcov/internal/domain"
	domainmocks "shcov.dev/pkg/shcov/internal/domain/mocks"
	m "shcov.dev/pkg/shcov/internal/model"
)

func TestMergeCmd_PassesInputsAndOutput(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newMergeCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Merge", mock.Anything, mock.MatchedBy(func(args domain.MergeArgs) bool {
		return args.Reports == m.Path(".shcov-reports") &&
			assert.ObjectsAreEqual([]m.Path{"unit", "integration/coverage.yaml"}, args.Inputs)
	})).Return(nil)

	cmd.SetArgs([]string{"merge", "unit", "integration/coverage.yaml"})
	err := cmd.Execute()
	require.NoError(t, err)
}

func TestMergeCmd_RequiresInputs(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newMergeCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	cmd.SetArgs([]string{"merge"})
	err := cmd.Execute()
	require.Error(t, err)
}
