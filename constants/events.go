package constants

// EventType identifies a state-change event on the broadcast hub. The
// values double as the SSE event names, so they are wire-stable.
type EventType string

const (
	EventJobStarted      EventType = "job_started"      // full job snapshot
	EventScan            EventType = "scan"             // scan + job snapshot + recent window
	EventJobEnded        EventType = "job_ended"        // closing summary + shift totals
	EventShiftUpdate     EventType = "shift_update"     // shift totals only
	EventRestoreComplete EventType = "restore_complete" // state was replaced from a backup
)
