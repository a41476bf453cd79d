package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/rollout/internal/activity"
	"github.com/edvin/rollout/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized
// correctly by the Temporal test framework. All activities are mocked via
// OnActivity, but the framework still needs the type information.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Core{})
	env.RegisterActivity(&activity.Fleet{})
	env.RegisterActivity(&activity.Gate{})
	env.RegisterActivity(&activity.Traffic{})
	env.RegisterActivity(&activity.Telemetry{})
	env.RegisterActivity(&activity.Notify{})
}

// matchTransition matches a RecordTransition call by target state, and
// reason code when one is given. Messages carry unpredictable diagnostics.
func matchTransition(toState, reasonCode string) interface{} {
	return mock.MatchedBy(func(params activity.RecordTransitionParams) bool {
		if params.ToState != toState {
			return false
		}
		return reasonCode == "" || params.ReasonCode == reasonCode
	})
}

func sourceGroup(replicas int) *model.InstanceGroup {
	return &model.InstanceGroup{
		ID:              "group-v1",
		ServiceName:     "checkout",
		ArtifactName:    "checkout",
		ArtifactVersion: "2.3.0",
		Endpoint:        "http://checkout-v1.internal:8080",
		DesiredReplicas: replicas,
		ReadyReplicas:   replicas,
		TrafficWeight:   100,
		LifecycleState:  model.GroupStateServing,
	}
}

func targetGroup(replicas int) *model.InstanceGroup {
	return &model.InstanceGroup{
		ID:              "group-v2",
		ServiceName:     "checkout",
		ArtifactName:    "checkout",
		ArtifactVersion: "2.4.0",
		Endpoint:        "http://checkout-v2.internal:8080",
		DesiredReplicas: replicas,
		LifecycleState:  model.GroupStateProvisioning,
	}
}

func testArtifact() *model.ArtifactRef {
	return &model.ArtifactRef{
		Name:    "checkout",
		Version: "2.4.0",
		Locator: "registry.internal/checkout@sha256:abc",
	}
}

func testRollout(strategy string, params model.StrategyParams) *model.Rollout {
	return &model.Rollout{
		ID:              "test-rollout-1",
		ServiceName:     "checkout",
		ArtifactName:    "checkout",
		ArtifactVersion: "2.4.0",
		Strategy:        strategy,
		Params:          params,
		State:           model.RolloutStatePending,
		ReasonCode:      model.ReasonAccepted,
	}
}
