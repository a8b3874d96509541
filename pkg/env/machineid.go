package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine, derived so the raw
// machine ID is not published. Falls back to the hostname.
func MachineID() string {
	if id, err := machineid.ProtectedID("sniff"); err == nil {
		return id[:12]
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "sniff"
}
