package model

// Snapshot is a point-in-time inventory capture of an environment. Each
// registration or refresh replaces the previous snapshot; records hold at
// most one.
type Snapshot struct {
	Time                  int64  `json:"time"`
	DockerVersion         string `json:"docker_version"`
	TotalCPU              int    `json:"total_cpu"`
	TotalMemory           int64  `json:"total_memory"`
	RunningContainerCount int    `json:"running_container_count"`
	StoppedContainerCount int    `json:"stopped_container_count"`
	ImageCount            int    `json:"image_count"`
	VolumeCount           int    `json:"volume_count"`
}
