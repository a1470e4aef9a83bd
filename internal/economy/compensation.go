package economy

import "context"

// compensation is a stack of undo steps for writes that already committed
type compensation struct {
	steps []undoStep
}

type undoStep struct {
	name string
	fn   func(context.Context) error
}

type undoFailure struct {
	step string
	err  error
}

func (c *compensation) push(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, fn: fn})
}

// run executes the steps newest first; it keeps going past failures
func (c *compensation) run(ctx context.Context) []undoFailure {
	var failed []undoFailure
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i].fn(ctx); err != nil {
			failed = append(failed, undoFailure{step: c.steps[i].name, err: err})
		}
	}
	c.steps = nil
	return failed
}
