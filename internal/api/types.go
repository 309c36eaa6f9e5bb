package api

import "github.com/dmdmdm-nz/pathwatchd/internal/pathmon"

// PathStatus is the JSON shape served by /current and streamed over /watch.
type PathStatus struct {
	Connected   bool              `json:"connected"`
	Interface   *pathmon.Snapshot `json:"interface,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

func statusFor(snap *pathmon.Snapshot) PathStatus {
	return PathStatus{
		Connected:   snap != nil,
		Interface:   snap,
		Fingerprint: snap.Fingerprint(),
	}
}
