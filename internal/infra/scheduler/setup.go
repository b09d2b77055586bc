package scheduler

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// ErrAlreadyInitialized is returned by Setup after the first call.
const ErrAlreadyInitialized = errors.ConstError("scheduler already initialized")

// Job is one scheduled unit of work. The context carries the tick's soft deadline.
type Job func(ctx context.Context) error

// Registrar binds jobs to a cron spec. The evaluators never see the cron engine.
type Registrar interface {
	Register(name, spec string, job Job) error
}

// JobSpec is a job with its schedule.
type JobSpec struct {
	Name string
	Spec string
	Job  Job
}

type setupState int

const (
	stateUninitialized setupState = iota
	stateInitialized
)

// Initializer guards the one-time registration of jobs.
type Initializer struct {
	mu    sync.Mutex
	state setupState
}

// Setup registers every job with r on the first call. Later calls register
// nothing and return ErrAlreadyInitialized. A registration error still
// consumes the call: jobs registered before the failure stay registered.
func (i *Initializer) Setup(r Registrar, jobs []JobSpec) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != stateUninitialized {
		return ErrAlreadyInitialized
	}
	i.state = stateInitialized

	for _, j := range jobs {
		if err := r.Register(j.Name, j.Spec, j.Job); err != nil {
			return errors.Annotatef(err, "registering job %q", j.Name)
		}
	}
	return nil
}

var process Initializer

// Setup is the process-wide start hook.
func Setup(r Registrar, jobs []JobSpec) error {
	return process.Setup(r, jobs)
}
