package request

// RegisterInstanceGroup adopts an externally provisioned instance group
// into the fleet tracker, e.g. a fleet that predates the orchestrator.
type RegisterInstanceGroup struct {
	ArtifactName    string `json:"artifact_name" validate:"required"`
	ArtifactVersion string `json:"artifact_version" validate:"required"`
	ArtifactLocator string `json:"artifact_locator"`
	Endpoint        string `json:"endpoint" validate:"required"`
	Replicas        int    `json:"replicas" validate:"required,min=1"`
	LifecycleState  string `json:"lifecycle_state" validate:"omitempty,oneof=provisioning ready serving"`
}
