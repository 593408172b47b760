package main

import (
	"os"
	"runtime"
	"strings"
)

// HardwareInfo describes the machine a trial suite ran on.
type HardwareInfo struct {
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	CPUModel   string `json:"cpu_model"`
	NumCPU     int    `json:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}

// DetectHardware gathers information about the current system.
func DetectHardware() HardwareInfo {
	info := HardwareInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		CPUModel:   "Unknown",
	}

	// Only Linux exposes /proc/cpuinfo; elsewhere the model stays Unknown.
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
		if model := parseCPUModel(string(data)); model != "" {
			info.CPUModel = model
		}
	}
	return info
}

// parseCPUModel extracts a model name from /proc/cpuinfo text. x86 kernels
// report "model name"; ARM kernels usually only report implementer and part.
func parseCPUModel(cpuinfo string) string {
	var implementer, part string
	for _, line := range strings.Split(cpuinfo, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "model name", "Model":
			if value != "" {
				return value
			}
		case "CPU implementer":
			implementer = value
		case "CPU part":
			part = value
		}
	}

	if implementer == "" && part == "" {
		return ""
	}
	return "ARM64 CPU (implementer: " + implementer + ", part: " + part + ")"
}
