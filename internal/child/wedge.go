package child

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// wedgeSampleWindow is how long Cancel's escalation goroutine watches a
// child's CPU/IO activity before concluding it is genuinely wedged rather
// than merely slow to react to SIGTERM.
const wedgeSampleWindow = 200 * time.Millisecond

// isWedged reports whether pid shows no CPU time and no I/O progress across
// a short sampling window, used to decide whether a SIGTERM that hasn't
// produced an exit within SignalGrace reflects a truly hung child (safe to
// SIGKILL) versus one still doing slow cleanup work. Any gopsutil error
// (process already gone, unsupported platform counters) is treated as "not
// wedged" so escalation always falls through to the grace-period timeout
// rather than blocking on process introspection.
func isWedged(pid int) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}

	cpuBefore, errCPU := proc.Times()
	ioBefore, errIO := proc.IOCounters()
	if errCPU != nil {
		return false
	}

	time.Sleep(wedgeSampleWindow)

	cpuAfter, err := proc.Times()
	if err != nil {
		// Process exited mid-sample; Wait() will observe the exit shortly.
		return false
	}
	cpuDelta := (cpuAfter.User + cpuAfter.System) - (cpuBefore.User + cpuBefore.System)
	if cpuDelta > 0.005 {
		return false
	}

	if errIO == nil {
		if ioAfter, err := proc.IOCounters(); err == nil {
			if ioAfter.ReadBytes != ioBefore.ReadBytes || ioAfter.WriteBytes != ioBefore.WriteBytes {
				return false
			}
		}
	}

	return true
}
