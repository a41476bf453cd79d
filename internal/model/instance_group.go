package model

import "time"

// InstanceGroup is a homogeneous replica set running one artifact version
// for one logical service. Rows are owned by the fleet tracker and mutated
// only through rollout workflow activities.
type InstanceGroup struct {
	ID              string    `json:"id" db:"id"`
	ServiceName     string    `json:"service_name" db:"service_name"`
	ArtifactName    string    `json:"artifact_name" db:"artifact_name"`
	ArtifactVersion string    `json:"artifact_version" db:"artifact_version"`
	ArtifactLocator string    `json:"artifact_locator" db:"artifact_locator"`
	Endpoint        string    `json:"endpoint" db:"endpoint"`
	DesiredReplicas int       `json:"desired_replicas" db:"desired_replicas"`
	ReadyReplicas   int       `json:"ready_replicas" db:"ready_replicas"`
	TrafficWeight   int       `json:"traffic_weight" db:"traffic_weight"`
	LifecycleState  string    `json:"lifecycle_state" db:"lifecycle_state"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ReplicaStatus is the scheduler's view of an instance group's replicas.
type ReplicaStatus struct {
	GroupID    string `json:"group_id"`
	Desired    int    `json:"desired"`
	Ready      int    `json:"ready"`
	Terminated bool   `json:"terminated"`
}
