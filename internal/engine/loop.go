package engine

import (
	"context"
	"fmt"
)

// DefaultLoopLimit caps loop iterations; the longest legitimate workflow
// (a many-chapter summary run) stays well under it.
const DefaultLoopLimit = 64

// Step advances a workflow: given the current state and the results of the
// previously emitted commands, it returns the next state and the next
// commands. Implementations must be pure.
type Step[S any] func(state S, results map[string]Result) (S, []Command)

// Run drives a workflow to completion: execute the pending commands, feed
// the tagged results to the reducer, repeat until the reducer emits none.
// Cancellation is honored at iteration boundaries only, so the returned
// state is always a complete snapshot, never a half-applied one.
func Run[S any](ctx context.Context, exec *Executor, state S, commands []Command, step Step[S], limit int) (S, error) {
	if limit <= 0 {
		limit = DefaultLoopLimit
	}

	for iteration := 0; len(commands) > 0; iteration++ {
		if iteration >= limit {
			return state, fmt.Errorf("generation loop exceeded %d iterations", limit)
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		results := make(map[string]Result, len(commands))
		for _, cmd := range commands {
			results[cmd.Task] = exec.Run(ctx, cmd)
		}
		state, commands = step(state, results)
	}
	return state, nil
}
