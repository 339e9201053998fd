package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsSource lists block-device mounts from a mounts table and asks
// sysfs whether each backing disk is removable. Paths are fields so
// tests can point them at a fake tree.
type SysfsSource struct {
	MountsPath string // normally /proc/self/mounts
	SysRoot    string // normally /sys
}

// NewSysfsSource returns a source reading the live kernel tables.
func NewSysfsSource() *SysfsSource {
	return &SysfsSource{
		MountsPath: "/proc/self/mounts",
		SysRoot:    "/sys",
	}
}

type mountEntry struct {
	device string
	dir    string
}

// Volumes returns one Volume per block-device mount, in mount-table order.
func (s *SysfsSource) Volumes() ([]Volume, error) {
	f, err := os.Open(s.MountsPath)
	if err != nil {
		return nil, fmt.Errorf("open mounts: %w", err)
	}
	defer f.Close()

	entries, err := parseMounts(f)
	if err != nil {
		return nil, fmt.Errorf("parse mounts: %w", err)
	}

	var volumes []Volume
	for _, e := range entries {
		if !strings.HasPrefix(e.device, "/dev/") {
			continue
		}
		disk, usb := s.parentDisk(e.device)
		volumes = append(volumes, Volume{
			Description: s.describe(disk),
			Removable:   usb || s.removableFlag(disk),
			Dir:         e.dir,
		})
	}
	return volumes, nil
}

// parseMounts reads the fstab-style table the kernel exposes.
func parseMounts(r io.Reader) ([]mountEntry, error) {
	var entries []mountEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		entries = append(entries, mountEntry{
			device: unescapeMount(fields[0]),
			dir:    unescapeMount(fields[1]),
		})
	}
	return entries, scanner.Err()
}

// unescapeMount decodes the \ooo octal escapes the kernel uses for
// whitespace and backslashes in mount paths.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// parentDisk maps a device node (/dev/sda1) to its whole-disk sysfs name
// (sda) and reports whether the device hangs off a USB bus.
func (s *SysfsSource) parentDisk(device string) (disk string, usb bool) {
	if real, err := filepath.EvalSymlinks(device); err == nil {
		device = real
	}
	name := filepath.Base(device)

	link := filepath.Join(s.SysRoot, "class", "block", name)
	real, err := filepath.EvalSymlinks(link)
	if err != nil {
		return name, false
	}
	usb = strings.Contains(real, "/usb")

	if _, err := os.Stat(filepath.Join(link, "partition")); err == nil {
		return filepath.Base(filepath.Dir(real)), usb
	}
	return name, usb
}

func (s *SysfsSource) removableFlag(disk string) bool {
	data, err := os.ReadFile(filepath.Join(s.SysRoot, "block", disk, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func (s *SysfsSource) describe(disk string) string {
	var parts []string
	for _, attr := range []string{"vendor", "model"} {
		data, err := os.ReadFile(filepath.Join(s.SysRoot, "block", disk, "device", attr))
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return disk
	}
	return strings.Join(parts, " ")
}
