package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"docbox_notifier/internal/infra/scheduler"
)

type recordingRegistrar struct {
	mu    sync.Mutex
	names []string
	fail  string
}

func (r *recordingRegistrar) Register(name, spec string, job scheduler.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.fail {
		return errors.New("bad spec")
	}
	r.names = append(r.names, name+"@"+spec)
	return nil
}

func noop(context.Context) error { return nil }

var testJobs = []scheduler.JobSpec{
	{Name: "reminder-tick", Spec: "*/30 * * * *", Job: noop},
	{Name: "deadline-daily", Spec: "0 9 * * *", Job: noop},
}

type setupSuite struct{}

var _ = gc.Suite(&setupSuite{})

func (s *setupSuite) TestSetupRegistersOnce(c *gc.C) {
	var initializer scheduler.Initializer
	reg := &recordingRegistrar{}

	err := initializer.Setup(reg, testJobs)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(reg.names, jc.DeepEquals, []string{"reminder-tick@*/30 * * * *", "deadline-daily@0 9 * * *"})

	err = initializer.Setup(reg, testJobs)
	c.Check(errors.Is(err, scheduler.ErrAlreadyInitialized), jc.IsTrue)
	c.Check(reg.names, gc.HasLen, 2)
}

func (s *setupSuite) TestConcurrentSetupRegistersOnce(c *gc.C) {
	var (
		initializer scheduler.Initializer
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
	)
	reg := &recordingRegistrar{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := initializer.Setup(reg, testJobs); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	c.Check(succeeded, gc.Equals, 1)
	c.Check(reg.names, gc.HasLen, 2)
}

func (s *setupSuite) TestSetupRegistrationError(c *gc.C) {
	var initializer scheduler.Initializer
	reg := &recordingRegistrar{fail: "deadline-daily"}

	err := initializer.Setup(reg, testJobs)
	c.Assert(err, gc.ErrorMatches, `registering job "deadline-daily": bad spec`)

	err = initializer.Setup(&recordingRegistrar{}, testJobs)
	c.Check(errors.Is(err, scheduler.ErrAlreadyInitialized), jc.IsTrue)
}

type cronSuite struct{}

var _ = gc.Suite(&cronSuite{})

func (s *cronSuite) TestRegisterRejectsBadSpec(c *gc.C) {
	cs := scheduler.NewCronScheduler(time.UTC, time.Minute, quietLogger())
	err := cs.Register("bad", "every half hour", noop)
	c.Assert(err, gc.ErrorMatches, `cron spec every half hour: .*`)
}

func (s *cronSuite) TestStartStop(c *gc.C) {
	cs := scheduler.NewCronScheduler(time.UTC, time.Minute, quietLogger())
	c.Assert(cs.Register("tick", "*/30 * * * *", noop), jc.ErrorIsNil)
	cs.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cs.Stop(ctx)
}
