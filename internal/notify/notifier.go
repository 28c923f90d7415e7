package notify

import (
	"context"
	"errors"
	"fmt"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/compare"
	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/telemetry"
	"visabulletin/internal/store"
)

const (
	report_notifier_all  = "notifier.all"
	report_notifier_test = "notifier.test"
)

// ErrNoRuns is returned by SendTest when there is no bulletin to preview.
var ErrNoRuns = errors.New("notify: no successful runs")

// Subscriptions is the part of the store the notifier reads.
type Subscriptions interface {
	ActiveSubscriptions(ctx context.Context) ([]store.Subscription, error)
	SubscriptionByEmail(ctx context.Context, email string) (store.Subscription, error)
	LastSuccessfulRun(ctx context.Context, runType store.RunType, excludeID int64) (store.Run, error)
}

type Stats struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Notifier struct {
	subs     Subscriptions
	sender   Sender
	composer Composer
	tel      telemetry.API
}

func NewNotifier(subs Subscriptions, sender Sender, composer Composer, tel telemetry.API) Notifier {
	assert.NotNil(subs)
	assert.NotNil(sender)
	assert.NotNil(tel)
	return Notifier{
		subs:     subs,
		sender:   sender,
		composer: composer,
		tel:      telemetry.NewScopedAPI("notify", tel),
	}
}

func recipient(sub store.Subscription) Recipient {
	return Recipient{
		Email:            sub.Email,
		Categories:       sub.Categories,
		UnsubscribeToken: sub.UnsubscribeToken,
	}
}

// NotifyAll emails every active subscriber. With updatedOnly, subscribers
// none of whose categories changed are skipped. A failure to reach one
// subscriber is counted and does not stop the others.
func (n Notifier) NotifyAll(ctx context.Context, result compare.Result, snapshot bulletin.Snapshot, updatedOnly bool) (Stats, error) {
	ctx, span := tracer.Start(ctx, "notifier:NotifyAll")
	defer span.End()

	subs, err := n.subs.ActiveSubscriptions(ctx)
	if err != nil {
		n.tel.ReportBroken(report_notifier_all, err)
		return Stats{}, fmt.Errorf("notify: %w", err)
	}

	changed := ChangedCodes(result)
	var stats Stats
	for _, sub := range subs {
		if updatedOnly && !Relevant(sub.Categories, changed) {
			stats.Skipped++
			continue
		}

		msg, err := n.composer.Compose(recipient(sub), result, snapshot)
		if err != nil {
			n.tel.ReportBroken(report_notifier_all, err, sub.Email)
			stats.Failed++
			continue
		}
		err = n.sender.Send(ctx, msg)
		if err != nil {
			n.tel.ReportWarning(report_notifier_all, err, sub.Email)
			stats.Failed++
			continue
		}
		stats.Sent++
	}

	n.tel.ReportCount(report_notifier_all, int64(stats.Sent))
	return stats, nil
}

// LatestSnapshot returns the snapshot of the latest official run, falling
// back to the latest manual run.
func (n Notifier) LatestSnapshot(ctx context.Context) (bulletin.Snapshot, error) {
	for _, runType := range []store.RunType{store.RUN_OFFICIAL, store.RUN_MANUAL} {
		run, err := n.subs.LastSuccessfulRun(ctx, runType, 0)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return bulletin.Snapshot{}, err
		}
		if run.Snapshot != nil {
			return *run.Snapshot, nil
		}
	}
	return bulletin.Snapshot{}, ErrNoRuns
}

// SendTest sends a preview of the latest bulletin to one address, it does
// not need a subscription. An active subscription of that address decides the
// categories shown, otherwise every category is.
func (n Notifier) SendTest(ctx context.Context, address string) error {
	ctx, span := tracer.Start(ctx, "notifier:SendTest")
	defer span.End()

	snapshot, err := n.LatestSnapshot(ctx)
	if err != nil {
		n.tel.ReportWarning(report_notifier_test, err)
		return fmt.Errorf("notify: %w", err)
	}

	to := Recipient{Email: address}
	sub, err := n.subs.SubscriptionByEmail(ctx, address)
	switch {
	case err == nil && sub.Active:
		to = recipient(sub)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("notify: %w", err)
	}

	msg, err := n.composer.ComposeTest(to, snapshot)
	if err != nil {
		n.tel.ReportBroken(report_notifier_test, err)
		return fmt.Errorf("notify: %w", err)
	}
	return n.sender.Send(ctx, msg)
}
