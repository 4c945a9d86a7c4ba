package system

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultStoragePath is the mount point reported as main storage.
const DefaultStoragePath = "/"

// HostMonitor implements Monitor with gopsutil.
type HostMonitor struct {
	storagePath string
	sample      time.Duration
}

// NewHostMonitor returns a HostMonitor reporting storage for the filesystem
// mounted at storagePath ("/" when empty).
func NewHostMonitor(storagePath string) *HostMonitor {
	if storagePath == "" {
		storagePath = DefaultStoragePath
	}
	return &HostMonitor{storagePath: storagePath, sample: 200 * time.Millisecond}
}

// Usage samples CPU over a short window.
func (m *HostMonitor) Usage(ctx context.Context) (*Usage, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, m.sample, false)
	if err != nil {
		return nil, fmt.Errorf("read cpu usage: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, m.storagePath)
	if err != nil {
		return nil, fmt.Errorf("read storage %s: %w", m.storagePath, err)
	}

	u := &Usage{
		RAM:     percent(vm.UsedPercent),
		Storage: percent(du.UsedPercent),
	}
	if len(cpuPercent) > 0 {
		u.Processor = percent(cpuPercent[0])
	}
	return u, nil
}

// Info collects host details. Missing optional figures are left empty.
func (m *HostMonitor) Info(ctx context.Context) (*Info, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, m.storagePath)
	if err != nil {
		return nil, fmt.Errorf("read storage %s: %w", m.storagePath, err)
	}

	info := &Info{}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.Processor.Name = cpus[0].ModelName
		info.Processor.ClockSpeed = formatClock(cpus[0].Mhz)
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Processor.CoreCount = fmt.Sprintf("%d Cores", cores)
	}
	info.Processor.BitDepth = bitDepth(hi.KernelArch)

	info.Machine.OperatingSystem = operatingSystem(hi)
	info.Machine.TotalRAM = FormatBytes(vm.Total)
	info.Machine.RAMTypeOrOSBitDepth = info.Processor.BitDepth
	if pids, err := process.PidsWithContext(ctx); err == nil {
		info.Machine.ProcCount = fmt.Sprintf("%d Procs", len(pids))
	}

	info.Storage.MainStorage = du.Fstype
	info.Storage.Total = FormatBytes(du.Total)
	if parts, err := disk.PartitionsWithContext(ctx, false); err == nil {
		info.Storage.DiskCount = fmt.Sprintf("%d Disks", len(parts))
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		info.Storage.SwapAmount = FormatBytes(sw.Total)
	}
	return info, nil
}

// Uptime reads the host boot time.
func (m *HostMonitor) Uptime(ctx context.Context) (*Uptime, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read uptime: %w", err)
	}
	u := SplitUptime(secs)
	return &u, nil
}

// SplitUptime splits a number of seconds into zero-padded display units.
func SplitUptime(secs uint64) Uptime {
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	minutes := secs / 60
	secs %= 60
	return Uptime{
		Days:    fmt.Sprintf("%02d", days),
		Hours:   fmt.Sprintf("%02d", hours),
		Minutes: fmt.Sprintf("%02d", minutes),
		Seconds: fmt.Sprintf("%02d", secs),
	}
}

// FormatBytes renders n in the largest binary unit that keeps it at or above
// one, with one decimal place.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

func percent(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func formatClock(mhz float64) string {
	if mhz <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f GHz", mhz/1000)
}

func bitDepth(arch string) string {
	switch arch {
	case "x86_64", "amd64", "aarch64", "arm64", "ppc64le", "s390x", "riscv64":
		return "64-bit"
	case "":
		return ""
	default:
		return "32-bit"
	}
}

func operatingSystem(hi *host.InfoStat) string {
	name := hi.Platform
	if name == "" {
		name = hi.OS
	}
	if hi.PlatformVersion != "" {
		name += " " + hi.PlatformVersion
	}
	return name
}
