//go:build windows

package shell

import "os/exec"

// KillGroupOnCancel keeps the default cancellation behavior on Windows,
// which kills only the direct child.
func KillGroupOnCancel(cmd *exec.Cmd) {}
