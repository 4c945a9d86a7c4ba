// Package system reports processor, memory and storage figures for the
// dashboard.
package system

import "context"

// Usage is the current utilisation of each resource, as whole percentages.
type Usage struct {
	Processor int `json:"processor"`
	RAM       int `json:"ram"`
	Storage   int `json:"storage"`
}

// ProcessorInfo describes the CPU.
type ProcessorInfo struct {
	Name       string `json:"name"`
	CoreCount  string `json:"coreCount"`
	ClockSpeed string `json:"clockSpeed"`
	BitDepth   string `json:"bitDepth"`
}

// MachineInfo describes the operating system and memory.
type MachineInfo struct {
	OperatingSystem     string `json:"operatingSystem"`
	TotalRAM            string `json:"totalRam"`
	RAMTypeOrOSBitDepth string `json:"ramTypeOrOSBitDepth"`
	ProcCount           string `json:"procCount"`
}

// StorageInfo describes the disks.
type StorageInfo struct {
	MainStorage string `json:"mainStorage"`
	Total       string `json:"total"`
	DiskCount   string `json:"diskCount"`
	SwapAmount  string `json:"swapAmount"`
}

// Info is the static description of the host shown on the dashboard.
type Info struct {
	Processor ProcessorInfo `json:"processor"`
	Machine   MachineInfo   `json:"machine"`
	Storage   StorageInfo   `json:"storage"`
}

// Uptime is the host uptime split into display units.
type Uptime struct {
	Days    string `json:"days"`
	Hours   string `json:"hours"`
	Minutes string `json:"minutes"`
	Seconds string `json:"seconds"`
}

// Monitor defines the read-only host queries.
type Monitor interface {
	// Usage returns current CPU, RAM and root storage utilisation.
	Usage(ctx context.Context) (*Usage, error)

	// Info returns processor, machine and storage details.
	Info(ctx context.Context) (*Info, error)

	// Uptime returns the time since the host booted.
	Uptime(ctx context.Context) (*Uptime, error)
}
