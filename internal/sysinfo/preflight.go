// Package sysinfo runs environment pre-flight checks before a browser
// session is launched, and feeds the same data to the control API's health
// endpoint.
package sysinfo

import (
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/flowloom/flowloom/internal/browser"
)

// PreflightReport summarizes whether the host looks capable of running a
// Chrome/Chromium browser session.
type PreflightReport struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	User           string    `json:"user,omitempty"`
	InContainer    bool      `json:"inContainer"`
	ChromePath     string    `json:"chromePath,omitempty"`
	ChromeVersion  string    `json:"chromeVersion,omitempty"`
	TotalMemoryMB  uint64    `json:"totalMemoryMb"`
	AvailMemoryMB  uint64    `json:"availMemoryMb"`
	MemoryWarning  bool      `json:"memoryWarning"`
	OS             string    `json:"os,omitempty"`
	Platform       string    `json:"platform,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// minHeadroomMB is the available-memory floor below which a browser launch
// is likely to fail or thrash; the teacher's CheckChromeEnvironment only
// logged memory stats without acting on them — this generalizes that into
// an actionable warning.
const minHeadroomMB = 512

// Run performs the preflight check, adapted from the teacher's
// CheckChromeEnvironment (user identity, container detection, Chrome
// version probe, memory stats), generalized with gopsutil to report
// available (not just total) memory and host platform.
func Run() PreflightReport {
	report := PreflightReport{GeneratedAt: time.Now()}

	if u, err := user.Current(); err == nil {
		report.User = u.Username
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		report.InContainer = true
	}

	if path := browser.FindChromePath(); path != "" {
		report.ChromePath = path
		if out, err := exec.Command(path, "--version").CombinedOutput(); err == nil {
			report.ChromeVersion = strings.TrimSpace(string(out))
		}
	} else {
		report.Warnings = append(report.Warnings, "chrome/chromium binary not found in common install locations")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		report.TotalMemoryMB = vm.Total / (1024 * 1024)
		report.AvailMemoryMB = vm.Available / (1024 * 1024)
		if report.AvailMemoryMB < minHeadroomMB {
			report.MemoryWarning = true
			report.Warnings = append(report.Warnings, "available memory below recommended headroom for a browser session")
		}
	}

	if info, err := host.Info(); err == nil {
		report.OS = info.OS
		report.Platform = info.Platform
	}

	return report
}
