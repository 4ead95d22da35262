package models

import "time"

// SystemResources describes the resources used by the server process
type SystemResources struct {
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	MemoryVMS     uint64  `json:"memory_vms"`
	MemoryPercent float32 `json:"memory_percent"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskPercent   float64 `json:"disk_percent"`
}

// ServerInfoResponse is returned by /server_info
type ServerInfoResponse struct {
	Backend    string          `json:"backend"`
	StartTime  time.Time       `json:"start_time"`
	Uptime     float64         `json:"uptime"`
	IdleTime   float64         `json:"idle_time"`
	Requests   int64           `json:"requests"`
	CacheSize  int             `json:"cache_size"`
	WorkingDir string          `json:"working_directory"`
	Resources  SystemResources `json:"resources"`
}
