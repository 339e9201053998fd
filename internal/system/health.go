// Package system gathers a health snapshot of the box: SoC temperature,
// usage of the media volume and the firmware throttling flag.
package system

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Health is a point-in-time snapshot. Fields that could not be read are
// left zero and the reason is recorded in Errors.
type Health struct {
	Volume        string
	DiskUsedPct   float64
	DiskFreeBytes uint64
	CPUTempC      float64
	Throttled     bool
	Timestamp     time.Time
	Errors        map[string]error
}

// Checker reads the health sources. The paths are fields so tests can
// point them at fixtures.
type Checker struct {
	ThermalPath string
	Vcgencmd    string
	log         *log.Logger
}

// NewChecker returns a Checker for a Raspberry Pi style system.
func NewChecker(logger *log.Logger) *Checker {
	return &Checker{
		ThermalPath: "/sys/class/thermal/thermal_zone0/temp",
		Vcgencmd:    "vcgencmd",
		log:         logger.WithPrefix("system"),
	}
}

// CPUTemp returns the thermal zone temperature in degrees Celsius.
func (c *Checker) CPUTemp() (float64, error) {
	data, err := os.ReadFile(c.ThermalPath)
	if err != nil {
		return 0, fmt.Errorf("read cpu temp: %w", err)
	}

	milliC, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu temp: %w", err)
	}
	return milliC / 1000.0, nil
}

// Throttled asks the firmware whether the CPU is or was throttled.
func (c *Checker) Throttled() (bool, error) {
	out, err := exec.Command(c.Vcgencmd, "get_throttled").Output()
	if err != nil {
		return false, fmt.Errorf("vcgencmd failed: %w", err)
	}
	return parseThrottled(string(out))
}

// parseThrottled reads "throttled=0x50005" style output.
func parseThrottled(out string) (bool, error) {
	parts := strings.SplitN(strings.TrimSpace(out), "=", 2)
	if len(parts) < 2 {
		return false, fmt.Errorf("unexpected vcgencmd output %q", out)
	}

	val, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("parse throttle value: %w", err)
	}
	return val != 0, nil
}

// Check collects a full snapshot for the filesystem holding volume
// ("/" when empty).
func (c *Checker) Check(volume string) Health {
	if volume == "" {
		volume = "/"
	}
	h := Health{
		Volume:    volume,
		Timestamp: time.Now(),
		Errors:    map[string]error{},
	}

	if temp, err := c.CPUTemp(); err == nil {
		h.CPUTempC = temp
	} else {
		h.Errors["temp"] = err
		c.log.Warn("temp read error", "err", err)
	}

	if usage, err := DiskUsage(volume); err == nil {
		h.DiskUsedPct = usage.UsedPct()
		h.DiskFreeBytes = usage.Free
	} else {
		h.Errors["disk"] = err
		c.log.Warn("disk read error", "path", volume, "err", err)
	}

	if throttled, err := c.Throttled(); err == nil {
		h.Throttled = throttled
	} else {
		h.Errors["throttle"] = err
		c.log.Warn("throttle check error", "err", err)
	}

	c.log.Info("health",
		"temp", fmt.Sprintf("%.1f°C", h.CPUTempC),
		"disk", fmt.Sprintf("%.1f%%", h.DiskUsedPct),
		"throttled", h.Throttled)
	return h
}

// Usage is the size and free space of a filesystem in bytes.
type Usage struct {
	Total uint64
	Free  uint64
}

// UsedPct returns the used share of the filesystem as a percentage.
func (u Usage) UsedPct() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Total-u.Free) / float64(u.Total) * 100
}
