package reliableserial

import "strings"

type DeviceInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

type Matcher interface {
	Match(info DeviceInfo) bool
}

type MatchFunc func(info DeviceInfo) bool

func (f MatchFunc) Match(info DeviceInfo) bool { return f(info) }

// NameMatcher matches a port by its exact name, e.g. COM3 or /dev/ttyACM0.
type NameMatcher string

func (n NameMatcher) Match(info DeviceInfo) bool { return string(n) == info.Name }

// USBMatcher matches USB serial adapters by hex vendor and product id.
// An empty PID matches any product of the vendor.
type USBMatcher struct {
	VID string
	PID string
}

func (u USBMatcher) Match(info DeviceInfo) bool {
	if !info.IsUSB || !strings.EqualFold(u.VID, info.VID) {
		return false
	}
	return u.PID == "" || strings.EqualFold(u.PID, info.PID)
}
