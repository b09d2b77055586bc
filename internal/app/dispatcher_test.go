package app_test

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/mail"
)

type dispatcherSuite struct {
	sender   *MockSender
	recorder *stubRecorder
	metrics  *countingMetrics
}

var _ = gc.Suite(&dispatcherSuite{})

type stubRecorder struct {
	calls    [][]app.Recipient
	notFirst bool
	err      error
}

func (r *stubRecorder) Record(_ context.Context, _ time.Time, accepted []app.Recipient) (bool, error) {
	r.calls = append(r.calls, accepted)
	if r.err != nil {
		return false, r.err
	}
	return !r.notFirst, nil
}

func (s *dispatcherSuite) setupMocks(c *gc.C) (*gomock.Controller, *app.Dispatcher) {
	ctrl := gomock.NewController(c)
	s.sender = NewMockSender(ctrl)
	s.recorder = &stubRecorder{}
	s.metrics = &countingMetrics{}
	renderer, err := app.NewRenderer()
	c.Assert(err, jc.ErrorIsNil)
	clk := testclock.NewClock(at(time.March, 10, 9, 0))
	return ctrl, app.NewDispatcher(s.sender, renderer, clk, time.Second, quietLogger(), s.metrics)
}

func (s *dispatcherSuite) delivery(recipients ...app.Recipient) []app.Delivery {
	return []app.Delivery{{
		BoxID:      1,
		Kind:       app.KindReminder,
		TriggerKey: "schedule:1:2026-03-10T00:00:00Z",
		Template:   app.TemplateReminder,
		Data:       app.TemplateData{BoxID: 1, BoxTitle: "Tax documents", Deadline: "2026-03-13 18:00"},
		Recipients: recipients,
		Recorder:   s.recorder,
	}}
}

var (
	alice = app.Recipient{SubmitterID: 1, Name: "Alice", Email: "alice@example.com"}
	bob   = app.Recipient{SubmitterID: 2, Name: "Bob", Email: "bob@example.com"}
)

func accepted(to ...string) mail.BatchResult {
	var res mail.BatchResult
	for _, t := range to {
		res.Results = append(res.Results, mail.Result{To: t, Accepted: true})
	}
	return res
}

func (s *dispatcherSuite) TestNothingToDispatch(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()

	outcomes, err := d.Dispatch(context.Background(), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes, gc.HasLen, 0)
}

func (s *dispatcherSuite) TestSenderNotReadyAbortsBeforeSending(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(errors.New("SMTP settings not valid"))

	_, err := d.Dispatch(context.Background(), s.delivery(alice))
	c.Assert(err, jc.Satisfies, app.IsConfigurationError)
	c.Check(s.recorder.calls, gc.HasLen, 0)
}

func (s *dispatcherSuite) TestSendRendersPerRecipientAndRecords(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []mail.Message) (mail.BatchResult, error) {
			c.Assert(msgs, gc.HasLen, 2)
			c.Check(msgs[0].HTMLBody, gc.Matches, `(?s).*Hello Alice.*Tax documents.*`)
			c.Check(msgs[1].HTMLBody, gc.Matches, `(?s).*Hello Bob.*`)
			return accepted("alice@example.com", "bob@example.com"), nil
		})

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice, bob))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(outcomes, gc.HasLen, 1)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeSent)
	c.Check(s.recorder.calls, jc.DeepEquals, [][]app.Recipient{{alice, bob}})
	c.Check(s.metrics.dispatched[app.OutcomeSent], gc.Equals, 1)
}

func (s *dispatcherSuite) TestDuplicateAddressesSentOnce(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	shouting := app.Recipient{SubmitterID: 3, Name: "Alice again", Email: "ALICE@example.com "}
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Len(1)).Return(accepted("alice@example.com"), nil)

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice, shouting))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeSent)
	c.Check(s.recorder.calls, jc.DeepEquals, [][]app.Recipient{{alice}})
}

func (s *dispatcherSuite) TestProviderErrorWritesNoLog(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).Return(mail.BatchResult{}, errors.New("connection refused"))

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeFailed)
	c.Check(errors.Is(outcomes[0].Err, app.ErrProviderUnavailable), jc.IsTrue)
	c.Check(s.recorder.calls, gc.HasLen, 0)
}

func (s *dispatcherSuite) TestAllRejectedWritesNoLog(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).Return(mail.BatchResult{Results: []mail.Result{
		{To: "alice@example.com", Err: errors.New("550 no such user")},
	}}, nil)

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeFailed)
	c.Check(outcomes[0].Rejected, gc.HasLen, 1)
	c.Check(s.recorder.calls, gc.HasLen, 0)
}

func (s *dispatcherSuite) TestPartialRecordsAcceptedOnly(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).Return(mail.BatchResult{Results: []mail.Result{
		{To: "alice@example.com", Accepted: true},
		{To: "bob@example.com", Err: errors.New("552 mailbox full")},
	}}, nil)

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice, bob))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomePartial)
	c.Check(outcomes[0].Accepted, jc.DeepEquals, []app.Recipient{alice})
	c.Check(s.recorder.calls, jc.DeepEquals, [][]app.Recipient{{alice}})
}

func (s *dispatcherSuite) TestConcurrentLogIsDuplicate(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.recorder.notFirst = true
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).Return(accepted("alice@example.com"), nil)

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeDuplicate)
}

func (s *dispatcherSuite) TestRecordFailureIsFailed(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.recorder.err = errors.New("unique violation")
	s.sender.EXPECT().Ready().Return(nil)
	s.sender.EXPECT().SendBatch(gomock.Any(), gomock.Any()).Return(accepted("alice@example.com"), nil)

	outcomes, err := d.Dispatch(context.Background(), s.delivery(alice))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeFailed)
	c.Check(outcomes[0].Accepted, gc.HasLen, 1)
}

func (s *dispatcherSuite) TestExpiredTickDefersRemaining(c *gc.C) {
	ctrl, d := s.setupMocks(c)
	defer ctrl.Finish()
	s.sender.EXPECT().Ready().Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := d.Dispatch(ctx, s.delivery(alice))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(outcomes[0].Status, gc.Equals, app.OutcomeDeferred)
	c.Check(s.recorder.calls, gc.HasLen, 0)
}
