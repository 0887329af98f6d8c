// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package session implements MigrationSession (spec §4.9): coordinating
// one deployment phase across many target databases with two nested
// levels of bounded concurrency, an atomic error counter, and an
// aggregate end-of-phase error.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/apply"
)

// ParallelSet is one group of targets applied with bounded concurrency
// among themselves (spec §5: "across parallel-sets, unlimited
// concurrency; within a set, bounded by a per-set semaphore").
type ParallelSet struct {
	MaxParallelism int
	Targets        []apply.Target
}

// Session owns the state shared by every target of one deployment: the
// defined migration list, where logs are written, the two operator
// switches (AllowCorePhase, WhatIf), and the atomic error counter every
// applicator checks cooperatively before each statement (spec §5
// "error-induced stop").
type Session struct {
	Defined        []*migrate.Migration
	LogDir         string
	AllowCorePhase bool
	WhatIf         bool
	Deployment     uuid.UUID
	Metrics        *Metrics

	errCount int64
}

// New returns a Session with a freshly generated deployment correlation
// id (spec SPEC_FULL "Correlation id [NEW]").
func New(defined []*migrate.Migration, logDir string, allowCorePhase, whatIf bool) *Session {
	return &Session{
		Defined:        defined,
		LogDir:         logDir,
		AllowCorePhase: allowCorePhase,
		WhatIf:         whatIf,
		Deployment:     uuid.New(),
	}
}

// HasErrors implements apply.ErrorSignal: true once any target in this
// deployment has failed. Checked best-effort, not strictly, by every
// applicator before each phase-entry execution.
func (s *Session) HasErrors() bool {
	return atomic.LoadInt64(&s.errCount) > 0
}

// RunPhase applies phase across every target in sets and returns a
// single aggregate error if any target failed (spec §4.9). Sets run with
// unlimited concurrency against each other; within a set, concurrency is
// bounded by that set's MaxParallelism. A target outcome of Incomplete
// due to context cancellation does not count against the error counter
// (spec §5 "Cancellation ... OperationCanceled excepted").
func (s *Session) RunPhase(ctx context.Context, phase migrate.Phase, sets []ParallelSet) error {
	var (
		setsWg   sync.WaitGroup
		failures []error
		mu       sync.Mutex
	)
	for setIndex, set := range sets {
		setsWg.Add(1)
		go func(setIndex int, set ParallelSet) {
			defer setsWg.Done()
			s.runSet(ctx, phase, setIndex, set, &mu, &failures)
		}(setIndex, set)
	}
	setsWg.Wait()

	if len(failures) == 0 {
		return nil
	}
	msgs := make([]string, len(failures))
	for i, e := range failures {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("migrate/session: deployment %s: phase %s failed on %d target(s): %v", s.Deployment, phase, len(failures), msgs)
}

func (s *Session) runSet(ctx context.Context, phase migrate.Phase, setIndex int, set ParallelSet, mu *sync.Mutex, failures *[]error) {
	permits := set.MaxParallelism
	if permits < 1 {
		permits = 1
	}
	sem := make(chan struct{}, permits)

	var (
		targetsWg sync.WaitGroup
		inFlight  int32
	)
	for _, target := range set.Targets {
		sem <- struct{}{}
		targetsWg.Add(1)
		go func(t apply.Target) {
			defer targetsWg.Done()
			defer func() { <-sem }()

			n := atomic.AddInt32(&inFlight, 1)
			s.Metrics.setInFlight(setIndex, int(n))
			defer func() {
				n := atomic.AddInt32(&inFlight, -1)
				s.Metrics.setInFlight(setIndex, int(n))
			}()

			a := &apply.Applicator{
				Target:         t,
				Defined:        s.Defined,
				LogDir:         s.LogDir,
				AllowCorePhase: s.AllowCorePhase,
				WhatIf:         s.WhatIf,
				Deployment:     s.Deployment,
				Errors:         s,
				Metrics:        s.Metrics,
			}
			_, err := a.Apply(ctx, phase)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			atomic.AddInt64(&s.errCount, 1)
			mu.Lock()
			*failures = append(*failures, fmt.Errorf("%s/%s: %w", t.Server, t.Database, err))
			mu.Unlock()
		}(target)
	}
	targetsWg.Wait()
}
