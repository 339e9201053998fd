//go:build !unix

package system

import "errors"

// DiskUsage is not implemented on this platform.
func DiskUsage(string) (Usage, error) {
	return Usage{}, errors.New("disk usage not supported on this platform")
}
