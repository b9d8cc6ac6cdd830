package core

import "pkt.systems/pslog"

// EngineDeps captures the collaborators of the engine. Host is required.
type EngineDeps struct {
	Host        Host
	Git         GitStatusProvider
	Diagnostics DiagnosticsProvider
	Logger      pslog.Logger
}
