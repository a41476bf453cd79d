package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

type TeardownGroupWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *TeardownGroupWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *TeardownGroupWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *TeardownGroupWorkflowTestSuite) TestDrainsThenTerminates() {
	s.env.OnActivity("TerminateInstanceGroup", mock.Anything, "group-v1").Return(nil)

	s.env.ExecuteWorkflow(TeardownGroupWorkflow, TeardownGroupParams{
		GroupID:      "group-v1",
		DrainSeconds: 120,
	})
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *TeardownGroupWorkflowTestSuite) TestTerminateFailurePropagates() {
	s.env.OnActivity("TerminateInstanceGroup", mock.Anything, "group-v1").
		Return(errors.New("scheduler unreachable"))

	s.env.ExecuteWorkflow(TeardownGroupWorkflow, TeardownGroupParams{GroupID: "group-v1"})
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestTeardownGroupWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(TeardownGroupWorkflowTestSuite))
}
