package contracts

import "fmt"

// StatusState is the installation state of an instrument.
type StatusState int

const (
	NotInstalled StatusState = iota
	Installing
	Installed
	Failed
)

func (s StatusState) String() string {
	switch s {
	case NotInstalled:
		return "not-installed"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("StatusState(%d)", int(s))
	}
}

// InstallStatus is a StatusState plus the failure reason when State is Failed.
type InstallStatus struct {
	State  StatusState
	Reason string
}

// StatusNotInstalled, StatusInstalling and StatusInstalled are the reason-less states.
var (
	StatusNotInstalled = InstallStatus{State: NotInstalled}
	StatusInstalling   = InstallStatus{State: Installing}
	StatusInstalled    = InstallStatus{State: Installed}
)

// StatusFailed returns a Failed status carrying reason.
func StatusFailed(reason string) InstallStatus {
	return InstallStatus{State: Failed, Reason: reason}
}

func (s InstallStatus) String() string {
	if s.State == Failed && s.Reason != "" {
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return s.State.String()
}

// CanTransition reports whether moving from s to next is allowed.
// Progress is monotonic; Failed may only be reset to NotInstalled.
func (s InstallStatus) CanTransition(next InstallStatus) bool {
	if s.State == next.State {
		return true
	}
	switch s.State {
	case NotInstalled:
		return next.State == Installing
	case Installing:
		return next.State == Installed || next.State == Failed
	case Failed:
		return next.State == NotInstalled
	default:
		return false
	}
}

// Instrument is an installable sound or program definition.
type Instrument struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Locator  string        `json:"locator" yaml:"locator"`                   // URI or path of the asset.
	Size     int64         `json:"size,omitempty" yaml:"size,omitempty"`     // Expected byte length, 0 when unknown.
	Checksum string        `json:"sha256,omitempty" yaml:"sha256,omitempty"` // Hex sha256 of the asset, empty when unknown.
	Status   InstallStatus `json:"-" yaml:"-"`
}
