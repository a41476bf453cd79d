package model

// ResourceSpec is the resource envelope an artifact declares for each
// replica of an instance group running it.
type ResourceSpec struct {
	Replicas  int `json:"replicas"`
	CPUMillis int `json:"cpu_millis"`
	MemoryMB  int `json:"memory_mb"`
}

// ArtifactRef is the resolved, immutable reference to a deployable
// artifact: name plus version identify it, the locator is its content
// address in the registry. Produced by the registry; never mutated here.
type ArtifactRef struct {
	Name      string       `json:"name"`
	Version   string       `json:"version"`
	Locator   string       `json:"locator"`
	Resources ResourceSpec `json:"resources"`
}
