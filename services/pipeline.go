package services

import (
	"context"
	"log"
	"time"
)

// stage is one step of a pipeline operating on shared state S.
type stage[S any] struct {
	name string
	run  func(ctx context.Context, st *S) error
}

// runPipeline executes stages in order and stops at the first error.
func runPipeline[S any](ctx context.Context, pipeline string, st *S, stages ...stage[S]) error {
	started := time.Now()
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			log.Printf("PIPELINE: %s cancelled before %s: %v", pipeline, s.name, err)
			return err
		}
		t := time.Now()
		if err := s.run(ctx, st); err != nil {
			log.Printf("PIPELINE: %s/%s failed after %s: %v", pipeline, s.name, time.Since(t).Round(time.Millisecond), err)
			return err
		}
		log.Printf("PIPELINE: %s/%s done in %s", pipeline, s.name, time.Since(t).Round(time.Millisecond))
	}
	log.Printf("PIPELINE: %s finished in %s", pipeline, time.Since(started).Round(time.Millisecond))
	return nil
}
