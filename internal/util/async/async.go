package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently, waits for all of them and returns
// every failure joined in task order. Tasks that have not started when ctx
// ends are not run and report the context error.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "bucket", Func: a.checkBucket},
//	    {Name: "endpoints", Func: a.checkEndpoints},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	errs := make([]error, len(tasks))
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
				return
			}
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
		}()
	}

	for range len(tasks) {
		<-done
	}
	return errors.Join(errs...)
}
