// Package env captures details about the scheduler's runtime environment.
package env

import "os"

// SchedRoot is the default root directory for the scheduler's on-disk state:
// $L10NSCHED_ROOT if set, else $HOME/l10nsched. cmd/l10nsched does not read
// it; its file paths come from flags.
var SchedRoot = findSchedRoot()

func findSchedRoot() string {
	if env := os.Getenv("L10NSCHED_ROOT"); env != "" {
		return env
	}
	return os.ExpandEnv("$HOME/l10nsched")
}
