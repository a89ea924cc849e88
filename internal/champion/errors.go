package champion

import "errors"

// ErrNoSuchIteration is returned when RollbackTo cannot find the
// requested iteration in the supplied history.
var ErrNoSuchIteration = errors.New("champion: no such iteration in history")

// ErrRollbackTargetIneligible is returned when RollbackTo finds the
// requested iteration but it fails the execution gate or minimum Sharpe
// floor (rules 1 and 6), and so cannot serve as champion.
var ErrRollbackTargetIneligible = errors.New("champion: rollback target fails execution gate or minimum sharpe floor")
