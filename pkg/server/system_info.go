package server

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/foldgen/internal/models"
)

// collectResources reports the server process' resource usage using gopsutil.
// Fields that cannot be read are left at zero.
func collectResources(workingDir string, logger *logrus.Logger) models.SystemResources {
	resources := models.SystemResources{CPUCount: runtime.NumCPU()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warnf("Failed to get process info: %v", err)
		return resources
	}

	if cpuPercent, err := proc.CPUPercent(); err != nil {
		logger.Warnf("Failed to get CPU percent: %v", err)
	} else {
		resources.CPUPercent = cpuPercent
	}

	if memInfo, err := proc.MemoryInfo(); err != nil {
		logger.Warnf("Failed to get memory info: %v", err)
	} else {
		resources.MemoryRSS = memInfo.RSS
		resources.MemoryVMS = memInfo.VMS
	}

	if memPercent, err := proc.MemoryPercent(); err != nil {
		logger.Warnf("Failed to get memory percent: %v", err)
	} else {
		resources.MemoryPercent = memPercent
	}

	if workingDir == "" {
		workingDir = "/"
	}
	if usage, err := disk.Usage(workingDir); err != nil {
		logger.Warnf("Failed to get disk usage: %v", err)
	} else {
		resources.DiskTotal = usage.Total
		resources.DiskUsed = usage.Used
		resources.DiskPercent = usage.UsedPercent
	}

	return resources
}
