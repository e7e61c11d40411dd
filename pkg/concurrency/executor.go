// Package concurrency provides a semaphore-bounded executor for fanning out
// I/O-bound work against external services without exceeding rate limits.
package concurrency

import (
	"context"
	"sync"
)

// Executor runs functions concurrently under a semaphore.
type Executor struct {
	semaphore chan struct{}
}

// DefaultMaxConcurrency bounds parallel external calls when not configured.
const DefaultMaxConcurrency = 5

// NewExecutor creates an executor with the given max concurrency.
func NewExecutor(maxConcurrency int) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Executor{semaphore: make(chan struct{}, maxConcurrency)}
}

// Execute runs the functions concurrently and returns one error slot per
// function, index-aligned. Panics are recovered and reported as errors.
func (e *Executor) Execute(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	results := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer recoverWithCallback(func(err error) {
				results[index] = err
			})

			select {
			case e.semaphore <- struct{}{}:
				defer func() { <-e.semaphore }()
			case <-ctx.Done():
				results[index] = ctx.Err()
				return
			}

			results[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results
}

// ExecuteWithResults runs functions concurrently and returns index-aligned
// results and errors.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}

	executor := NewExecutor(maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer recoverWithCallback(func(err error) {
				errs[index] = err
			})

			select {
			case executor.semaphore <- struct{}{}:
				defer func() { <-executor.semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			results[index], errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// FirstError returns the first non-nil error from an Execute result.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
