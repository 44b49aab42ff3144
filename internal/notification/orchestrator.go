// Package notification fans an emergency out to the subject's contacts.
// Every contact is handled in its own goroutine, every attempt lands in the
// delivery ledger, and the caller gets an answer within a bounded time even
// when some sends are still retrying.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
	"github.com/saturnino-fabrica-de-software/guardian/internal/metrics"
	"github.com/saturnino-fabrica-de-software/guardian/internal/policy"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	// detached sends give up after this long
	defaultSendBudget = 2 * time.Minute
	callbackTimeout   = 30 * time.Second
)

// Ledger is the append-only delivery record store.
type Ledger interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
}

// Sender routes a message to the adapter serving a channel. *channel.Registry implements it.
type Sender interface {
	Active(ch domain.Channel) bool
	Send(ctx context.Context, ch domain.Channel, destination string, msg channel.Message) (string, error)
}

// Sleeper waits between retries; it returns early with ctx's error.
type Sleeper func(ctx context.Context, d time.Duration) error

// CompletionFunc receives the final result once sends that outlived Notify finish.
type CompletionFunc func(ctx context.Context, event *domain.EmergencyEvent, final *Result)

// Notice is one fan-out request
type Notice struct {
	Event    *domain.EmergencyEvent
	Incident *domain.Incident
	Contacts []domain.Contact
	Keywords []string
}

// Result summarises a fan-out. Pending counts contacts still being tried
// when the timeout hit.
type Result struct {
	Success                 bool                    `json:"success"`
	SuccessfulNotifications int                     `json:"successful_notifications"`
	FailedContacts          []string                `json:"failed_contacts"`
	NotifiedContacts        []string                `json:"notified_contacts"`
	Pending                 int                     `json:"pending"`
	Records                 []domain.DeliveryRecord `json:"records"`
}

type contactOutcome struct {
	contact   domain.Contact
	delivered bool
	records   []domain.DeliveryRecord
}

type Orchestrator struct {
	sender          Sender
	ledger          Ledger
	renderer        *Renderer
	policy          policy.NotificationPolicy
	trackingBaseURL string
	timeout         time.Duration
	sendBudget      time.Duration
	sleep           Sleeper
	onComplete      CompletionFunc
	logger          *slog.Logger
	now             func() time.Time
}

func NewOrchestrator(sender Sender, ledger Ledger, renderer *Renderer, p policy.NotificationPolicy,
	trackingBaseURL string, logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sender:          sender,
		ledger:          ledger,
		renderer:        renderer,
		policy:          p,
		trackingBaseURL: trackingBaseURL,
		timeout:         defaultNotifyTimeout,
		sendBudget:      defaultSendBudget,
		sleep:           sleepCtx,
		logger:          logger,
		now:             time.Now,
	}
}

// WithTimeout bounds how long Notify blocks.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	if d > 0 {
		o.timeout = d
	}
	return o
}

// WithSleeper replaces the retry wait, mainly for tests.
func (o *Orchestrator) WithSleeper(s Sleeper) *Orchestrator {
	o.sleep = s
	return o
}

// WithCompletion registers the callback run after late sends finish.
func (o *Orchestrator) WithCompletion(fn CompletionFunc) *Orchestrator {
	o.onComplete = fn
	return o
}

// Notify sends the emergency to every contact in parallel. It never fails
// as a whole: per-contact problems end up in FailedContacts and the ledger.
func (o *Orchestrator) Notify(ctx context.Context, n Notice) *Result {
	start := time.Now()
	defer func() { metrics.FanoutDuration.Observe(time.Since(start).Seconds()) }()

	targets := o.targets(n)
	if len(targets) == 0 {
		return &Result{FailedContacts: []string{}, NotifiedContacts: []string{}, Records: []domain.DeliveryRecord{}}
	}

	// Sends outlive the caller's context so a timeout or disconnect never
	// abandons a notification halfway.
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sendBudget)

	limit := o.policy.Concurrency
	if limit < 1 {
		limit = len(targets)
	}

	results := make(chan contactOutcome, len(targets))
	go func() {
		var g errgroup.Group
		g.SetLimit(limit)
		for _, c := range targets {
			g.Go(func() error {
				results <- o.notifyContact(workCtx, n, c)
				return nil
			})
		}
		_ = g.Wait()
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	collected := make([]contactOutcome, 0, len(targets))
wait:
	for len(collected) < len(targets) {
		select {
		case r := <-results:
			collected = append(collected, r)
		case <-timer.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	result := buildResult(collected)
	result.Pending = len(targets) - len(collected)

	if result.Pending == 0 {
		cancel()
	} else {
		o.logger.Warn("notification fan-out returned with sends still running",
			slog.String("event_id", n.Event.ID.String()),
			slog.Int("pending", result.Pending),
		)
		go o.awaitStragglers(context.WithoutCancel(ctx), cancel, n.Event, collected, results, result.Pending)
	}

	o.logger.Info("notification fan-out",
		slog.String("event_id", n.Event.ID.String()),
		slog.Int("contacts", len(targets)),
		slog.Int("successful", result.SuccessfulNotifications),
		slog.Int("failed", len(result.FailedContacts)),
		slog.Int("pending", result.Pending),
	)

	return result
}

func (o *Orchestrator) awaitStragglers(ctx context.Context, cancel context.CancelFunc, event *domain.EmergencyEvent,
	collected []contactOutcome, results <-chan contactOutcome, pending int,
) {
	defer cancel()

	all := append([]contactOutcome(nil), collected...)
	for i := 0; i < pending; i++ {
		all = append(all, <-results)
	}

	final := buildResult(all)
	o.logger.Info("late notifications finished",
		slog.String("event_id", event.ID.String()),
		slog.Int("successful", final.SuccessfulNotifications),
	)

	if o.onComplete != nil {
		cbCtx, cbCancel := context.WithTimeout(ctx, callbackTimeout)
		defer cbCancel()
		o.onComplete(cbCtx, event, final)
	}
}

// targets drops emergency-services contacts unless the plan escalates.
func (o *Orchestrator) targets(n Notice) []domain.Contact {
	out := make([]domain.Contact, 0, len(n.Contacts))
	for _, c := range n.Contacts {
		if c.IsServices && !n.Event.Plan.EscalateToServices {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (o *Orchestrator) notifyContact(ctx context.Context, n Notice, c domain.Contact) contactOutcome {
	out := contactOutcome{contact: c}
	log := o.logger.With(
		slog.String("event_id", n.Event.ID.String()),
		slog.String("contact_id", c.ID.String()),
	)

	if c.IsServices && n.Event.Plan.SimulateServices {
		rec := o.record(ctx, n.Event, c, c.PreferredChannel, 1, domain.DeliverySent, "simulated:"+uuid.NewString(), "")
		out.records = append(out.records, rec)
		out.delivered = true
		log.Info("emergency services contact simulated")
		return out
	}

	channels := o.channelsFor(n.Event.Plan, c)
	if !c.HasConsent(o.now()) || len(channels) == 0 {
		rec := o.record(ctx, n.Event, c, c.PreferredChannel, 1, domain.DeliveryFailed, "", domain.ReasonNotEligible)
		out.records = append(out.records, rec)
		log.Info("contact not eligible", slog.Bool("consent", c.HasConsent(o.now())))
		return out
	}

	for _, ch := range channels {
		data := o.messageData(n, c)
		msg, err := o.renderer.Render(ch, data)
		if err != nil {
			rec := o.record(ctx, n.Event, c, ch, 1, domain.DeliveryFailed, "", err.Error())
			out.records = append(out.records, rec)
			log.Error("failed to render notification", slog.String("channel", string(ch)), slog.Any("error", err))
			continue
		}

		delivered, records := o.sendWithRetry(ctx, n.Event, c, ch, msg, log)
		out.records = append(out.records, records...)
		if delivered {
			out.delivered = true
			return out
		}
		if ctx.Err() != nil {
			return out
		}
	}

	return out
}

// channelsFor returns the preferred then fallback channel as allowed by the
// plan. A contact whose channels are all outside the plan is reached on the
// first plan channel it has a destination for.
func (o *Orchestrator) channelsFor(plan domain.ResponsePlan, c domain.Contact) []domain.Channel {
	var out []domain.Channel
	for _, ch := range c.Channels() {
		if plan.Allows(ch) && o.sender.Active(ch) {
			out = append(out, ch)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, ch := range plan.Channels {
		if c.Destination(ch) != "" && o.sender.Active(ch) {
			return []domain.Channel{ch}
		}
	}
	return nil
}

func (o *Orchestrator) sendWithRetry(ctx context.Context, event *domain.EmergencyEvent, c domain.Contact,
	ch domain.Channel, msg channel.Message, log *slog.Logger,
) (bool, []domain.DeliveryRecord) {
	var records []domain.DeliveryRecord

	destination := c.Destination(ch)
	if destination == "" {
		rec := o.record(ctx, event, c, ch, 1, domain.DeliveryFailed, "", domain.ReasonInvalidDest)
		return false, append(records, rec)
	}

	maxAttempts := o.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		messageID, err := o.sender.Send(ctx, ch, destination, msg)
		if err == nil {
			rec := o.record(ctx, event, c, ch, attempt, domain.DeliverySent, messageID, "")
			log.Info("notification sent", slog.String("channel", string(ch)), slog.Int("attempt", attempt))
			return true, append(records, rec)
		}

		reason := err.Error()
		permanent := channel.IsPermanent(err)
		if !permanent && attempt == maxAttempts {
			reason = fmt.Sprintf("%s: %s", domain.ReasonRetriesExhausted, reason)
		}
		if errors.Is(err, channel.ErrNotRegistered) {
			reason = domain.ReasonChannelMissing
		}
		records = append(records, o.record(ctx, event, c, ch, attempt, domain.DeliveryFailed, "", reason))

		log.Warn("notification attempt failed",
			slog.String("channel", string(ch)),
			slog.Int("attempt", attempt),
			slog.Bool("permanent", permanent),
			slog.Any("error", err),
		)

		if permanent || attempt == maxAttempts {
			break
		}
		if err := o.sleep(ctx, o.backoff(attempt)); err != nil {
			break
		}
	}

	return false, records
}

// backoff is base * 2^(attempt-1), capped at the policy maximum.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.policy.MaxDelay {
			return o.policy.MaxDelay
		}
	}
	if d > o.policy.MaxDelay {
		return o.policy.MaxDelay
	}
	return d
}

func (o *Orchestrator) record(ctx context.Context, event *domain.EmergencyEvent, c domain.Contact, ch domain.Channel,
	attempt int, status domain.DeliveryStatus, messageID, reason string,
) domain.DeliveryRecord {
	rec := domain.DeliveryRecord{
		ID:                uuid.New(),
		EmergencyEventID:  event.ID,
		ContactID:         c.ID,
		Channel:           ch,
		Status:            status,
		ProviderMessageID: messageID,
		Attempt:           attempt,
		ErrorReason:       reason,
		Timestamp:         o.now(),
	}

	if err := o.ledger.Append(ctx, &rec); err != nil {
		o.logger.Error("failed to append delivery record",
			slog.String("event_id", event.ID.String()),
			slog.String("contact_id", c.ID.String()),
			slog.Any("error", err),
		)
	}
	metrics.NotificationAttemptsTotal.WithLabelValues(string(ch), string(status)).Inc()

	return rec
}

func (o *Orchestrator) messageData(n Notice, c domain.Contact) MessageData {
	d := MessageData{
		ContactName:   c.Name,
		DetectionType: n.Event.DetectionType,
		Severity:      string(n.Event.Priority),
		Location:      describeLocation(n.Event.Location),
		Time:          n.Event.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		Keywords:      n.Keywords,
	}
	if inc := n.Incident; inc != nil {
		d.SubjectName = inc.SubjectName
		d.IncidentID = inc.IncidentID
		d.TrackingURL = domain.TrackingURL(o.trackingBaseURL, inc.IncidentID)
		if inc.DetectionType != "" {
			d.DetectionType = inc.DetectionType
		}
		if !inc.InitialLocation.IsZero() || inc.InitialLocation.PlaceName != "" {
			d.Location = describeLocation(inc.InitialLocation)
		}
	}
	if d.SubjectName == "" {
		d.SubjectName = n.Event.SubjectID
	}
	return d
}

func buildResult(outcomes []contactOutcome) *Result {
	r := &Result{FailedContacts: []string{}, NotifiedContacts: []string{}, Records: []domain.DeliveryRecord{}}
	for _, oc := range outcomes {
		r.Records = append(r.Records, oc.records...)
		if oc.delivered {
			r.SuccessfulNotifications++
			r.NotifiedContacts = append(r.NotifiedContacts, oc.contact.Name)
		} else {
			r.FailedContacts = append(r.FailedContacts, oc.contact.Name)
		}
	}
	r.Success = r.SuccessfulNotifications > 0
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
