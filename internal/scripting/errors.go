package scripting

import (
	"errors"
	"fmt"
)

var (
	ErrEntityLimitExceeded    = errors.New("scripting: entity limit exceeded")
	ErrComponentNotAllowed    = errors.New("scripting: component type not allowed for this module")
	ErrComponentNotRegistered = errors.New("scripting: component type not registered with the script bridge")
	ErrNoTickFunction         = errors.New("scripting: script defines no global tick(dt) function")
)

// ResourceError reports a module exceeding one of its configured budgets.
type ResourceError struct {
	ModuleID string
	Resource string
	Current  int64
	Limit    int64
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("scripting: module %s exceeded %s budget (%d/%d)", e.ModuleID, e.Resource, e.Current, e.Limit)
}
