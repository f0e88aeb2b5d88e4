package scheduler

import "strings"

// stopMarkers are substrings whose presence in a run's combined stdout
// mark it FAILURE regardless of exit code (spec §4.9, priority rule 1).
var stopMarkers = []string{
	"stop_automation",
	"Automation stopped",
	"RuntimeError",
	"queue is full",
}

// successMarkers are substrings whose presence, alongside a zero exit
// code, mark a run SUCCESS (spec §4.9, priority rule 2).
var successMarkers = []string{"success", "completed"}

// Classify implements spec §4.9's four-rule failure-classification
// priority table:
//  1. any stopMarker present in stdout -> FAILURE, regardless of exit code
//  2. exit == 0 and a successMarker is present -> SUCCESS
//  3. exit == 0 but no successMarker -> FAILURE
//  4. exit != 0 -> FAILURE
func Classify(stdout string, exitCode int, runErr error) Outcome {
	for _, marker := range stopMarkers {
		if strings.Contains(stdout, marker) {
			return Failure
		}
	}
	if runErr != nil {
		return Failure
	}
	if exitCode != 0 {
		return Failure
	}
	for _, marker := range successMarkers {
		if strings.Contains(stdout, marker) {
			return Success
		}
	}
	return Failure
}
