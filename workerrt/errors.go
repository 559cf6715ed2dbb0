package workerrt

import "errors"

// ErrDuplicateTask is returned by Register when name is already bound to a
// handler, or collides with a reserved sentinel command.
var ErrDuplicateTask = errors.New("workerrt: duplicate task")

// ErrAlreadyRunning is returned by Register once Run has started the
// dispatch loop; handlers must be registered up front.
var ErrAlreadyRunning = errors.New("workerrt: cannot register a task after Run has started")
