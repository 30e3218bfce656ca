package modulehost

import "fmt"

// ModuleFault is raised when a module's Tick panics.
type ModuleFault struct {
	Module string
	Cause  any
}

func (e *ModuleFault) Error() string {
	return fmt.Sprintf("MODULE_FAULT: module %s faulted: %v", e.Module, e.Cause)
}

// ModuleTimeout is raised when a module's Tick exceeds its declared
// MaxRuntimeMs. The worker goroutine is not killed, only abandoned; its
// command buffer is retired and replaced with a fresh one, so stale
// writes never reach playback.
type ModuleTimeout struct {
	Module       string
	MaxRuntimeMs int
}

func (e *ModuleTimeout) Error() string {
	return fmt.Sprintf("MODULE_TIMEOUT: module %s exceeded %dms", e.Module, e.MaxRuntimeMs)
}
