package enum

const (
	StatusProvisioned = "provisioned"
	StatusStarting    = "starting"
	StatusRunning     = "running"
	StatusTerminated  = "terminated"
	StatusError       = "error"
)
