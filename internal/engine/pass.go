package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/models"
	"github.com/studypay/duebell/internal/notify"
	"github.com/studypay/duebell/pkg/mail"
	"github.com/studypay/duebell/pkg/metrics"
)

const defaultWorkers = 4

// Summary itemises one completed pass. A pass always completes; per-item
// failures are counted here rather than aborting the run.
type Summary struct {
	InstallmentsScanned int                    `json:"installments_scanned"`
	Transitioned        int                    `json:"transitioned"`
	Notifications       notify.DispatchSummary `json:"notifications"`
	Errors              int                    `json:"errors"`
}

// Engine orchestrates the status-and-notification pass across all active
// agencies. It is safe to invoke concurrently with itself: every status write
// is conditional and every send is guarded by the dispatch ledger.
type Engine struct {
	db         *gorm.DB
	mailer     mail.Mailer
	log        *zap.Logger
	applier    *Applier
	rules      *notify.RuleResolver
	recipients *notify.RecipientResolver
	dispatcher *notify.Dispatcher

	workers int
	clock   func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithWorkers bounds the per-agency installment worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock injects the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithDispatcherOptions forwards options to the internal dispatcher.
func WithDispatcherOptions(opts ...notify.DispatcherOption) Option {
	return func(e *Engine) {
		e.dispatcher = notify.NewDispatcher(e.db, e.mailer, e.log, opts...)
	}
}

// WithTransitionAnnouncer registers a callback invoked with each in-app
// notification created by a transition, typically the websocket hub.
func WithTransitionAnnouncer(fn func(models.Notification)) Option {
	return func(e *Engine) {
		e.applier = NewApplier(e.db, e.log, WithAnnouncer(fn))
	}
}

// NewEngine wires the evaluator, applier, resolvers and dispatcher around
// one database handle and one outbound transport.
func NewEngine(db *gorm.DB, mailer mail.Mailer, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		db:         db,
		mailer:     mailer,
		log:        log,
		applier:    NewApplier(db, log),
		rules:      notify.NewRuleResolver(db, log),
		recipients: notify.NewRecipientResolver(db, log),
		dispatcher: notify.NewDispatcher(db, mailer, log),
		workers:    defaultWorkers,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one full pass and returns its summary. The returned error
// aggregates per-item failures for the caller's log; the summary is valid
// either way.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	defer func() { metrics.PassDuration.Observe(time.Since(started).Seconds()) }()

	now := e.clock()

	var agencies []models.Agency
	if err := e.db.WithContext(ctx).Where("active = ?", true).Find(&agencies).Error; err != nil {
		return Summary{}, fmt.Errorf("engine: load agencies: %w", err)
	}

	var (
		summary Summary
		errs    error
	)
	for _, agency := range agencies {
		agencySummary, err := e.runAgency(ctx, agency, now)
		summary.merge(agencySummary)
		errs = multierr.Append(errs, err)
	}

	e.log.Info("pass complete",
		zap.Int("agencies", len(agencies)),
		zap.Int("installments_scanned", summary.InstallmentsScanned),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("sent", summary.Notifications.Sent),
		zap.Int("skipped", summary.Notifications.Skipped),
		zap.Int("failed", summary.Notifications.Failed),
		zap.Int("errors", summary.Errors),
	)
	return summary, errs
}

func (s *Summary) merge(other Summary) {
	s.InstallmentsScanned += other.InstallmentsScanned
	s.Transitioned += other.Transitioned
	s.Notifications.Add(other.Notifications)
	s.Errors += other.Errors
}

type agencyContext struct {
	agency    models.Agency
	cutoff    CutoffTime
	threshold int
	loc       *time.Location
}

func (e *Engine) runAgency(ctx context.Context, agency models.Agency, now time.Time) (Summary, error) {
	cutoff, err := ParseCutoff(agency.OverdueCutoff)
	if err != nil {
		e.log.Warn("invalid overdue cutoff, using default",
			zap.String("agency_id", agency.ID),
			zap.String("cutoff", agency.OverdueCutoff),
		)
		cutoff = CutoffTime{Hour: 17}
	}

	ac := agencyContext{
		agency:    agency,
		cutoff:    cutoff,
		threshold: ClampThreshold(agency.DueSoonThresholdDays),
		loc:       agency.Location(),
	}

	var (
		summary Summary
		errs    error
	)

	// Recover fan-outs lost to a crash between transition and dispatch.
	// The ledger turns any already-handled event into skips.
	reconciled, err := e.applier.Reconcile(ctx, agency.ID)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, event := range reconciled {
		dispatched, err := e.fanOut(ctx, ac, event.Installment, models.EventOverdue, event.OccurredAt)
		summary.Notifications.Add(dispatched)
		if err != nil {
			summary.Errors++
			errs = multierr.Append(errs, err)
			continue
		}
		e.stamp(ctx, event.Installment.ID, "overdue_notified_at", now, &summary, &errs)
	}

	horizon := localDate(now, ac.loc).AddDate(0, 0, ac.threshold)
	var candidates []models.Installment
	err = e.db.WithContext(ctx).
		Where("agency_id = ? AND status = ? AND due_date <= ?", agency.ID, models.StatusPending, horizon).
		Find(&candidates).Error
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("engine: scan agency %s: %w", agency.ID, err))
		return summary, errs
	}

	summary.InstallmentsScanned = len(candidates)
	metrics.InstallmentsScanned.Add(float64(len(candidates)))

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		feed = make(chan models.Installment)
	)

	workers := e.workers
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range feed {
				itemSummary, itemErr := e.processInstallment(ctx, ac, inst, now)
				mu.Lock()
				summary.merge(itemSummary)
				errs = multierr.Append(errs, itemErr)
				mu.Unlock()
			}
		}()
	}

	for _, inst := range candidates {
		feed <- inst
	}
	close(feed)
	wg.Wait()

	return summary, errs
}

func (e *Engine) processInstallment(ctx context.Context, ac agencyContext, inst models.Installment, now time.Time) (Summary, error) {
	var (
		summary Summary
		errs    error
	)

	switch {
	case ShouldTransitionToOverdue(inst, ac.cutoff, ac.loc, now):
		event, err := e.applier.Apply(ctx, inst, now)
		if err != nil {
			summary.Errors++
			return summary, err
		}
		if event == nil {
			// Lost the race to a concurrent pass or a payment; nothing to do.
			return summary, nil
		}
		summary.Transitioned++

		dispatched, err := e.fanOut(ctx, ac, event.Installment, models.EventOverdue, event.OccurredAt)
		summary.Notifications.Add(dispatched)
		if err != nil {
			summary.Errors++
			return summary, err
		}
		e.stamp(ctx, inst.ID, "overdue_notified_at", now, &summary, &errs)

	case IsDueSoon(inst, ac.threshold, ac.loc, now):
		// The stamp is informational only; the ledger decides whether any
		// recipient actually receives something, so a reopened cycle
		// notifies again without special-casing here.
		dispatched, err := e.fanOut(ctx, ac, inst, models.EventDueSoon, now)
		summary.Notifications.Add(dispatched)
		if err != nil {
			summary.Errors++
			return summary, err
		}
		e.stamp(ctx, inst.ID, "due_soon_notified_at", now, &summary, &errs)
	}

	return summary, errs
}

// stamp records the informational last-notified marker. Failures are counted
// but deliberately non-fatal; dedup never depends on these columns.
func (e *Engine) stamp(ctx context.Context, installmentID, column string, now time.Time, summary *Summary, errs *error) {
	err := e.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ?", installmentID).
		Update(column, now).Error
	if err != nil {
		summary.Errors++
		*errs = multierr.Append(*errs, fmt.Errorf("engine: stamp %s on %s: %w", column, installmentID, err))
	}
}

// fanOut resolves rules and recipients for one event and dispatches the
// rendered message to each recipient through the dedup ledger.
func (e *Engine) fanOut(ctx context.Context, ac agencyContext, inst models.Installment, eventType models.EventType, occurredAt time.Time) (notify.DispatchSummary, error) {
	var summary notify.DispatchSummary

	resolved, err := e.rules.Resolve(ctx, ac.agency.ID, eventType)
	if err != nil {
		return summary, err
	}
	if len(resolved) == 0 {
		return summary, nil
	}

	data, err := e.eventData(ctx, ac, inst, eventType, occurredAt)
	if err != nil {
		return summary, err
	}

	event := notify.Event{
		Key:           inst.EventKey(),
		Type:          eventType,
		AgencyID:      ac.agency.ID,
		InstallmentID: inst.ID,
		OccurredAt:    occurredAt,
	}

	var errs error
	for _, rule := range resolved {
		recipients, err := e.recipients.Expand(ctx, inst, rule.RecipientType)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for _, recipient := range recipients {
			data["recipient_name"] = recipient.DisplayName

			rendered, err := notify.Render(rule.Template, data)
			if err != nil {
				// Configuration error: the template references a field this
				// event does not carry. Never send a partial message.
				e.log.Error("template render failed",
					zap.String("agency_id", ac.agency.ID),
					zap.String("event_type", string(eventType)),
					zap.Bool("custom_template", rule.Custom),
					zap.Error(err),
				)
				errs = multierr.Append(errs, err)
				continue
			}

			summary.Add(e.dispatcher.Dispatch(ctx, event, []notify.Recipient{recipient}, rendered))
		}
	}

	return summary, errs
}

// eventData builds the placeholder values shared by every recipient of one
// event. recipient_name is filled per recipient by the caller.
func (e *Engine) eventData(ctx context.Context, ac agencyContext, inst models.Installment, eventType models.EventType, occurredAt time.Time) (map[string]string, error) {
	var student models.Student
	if err := e.db.WithContext(ctx).First(&student, "id = ?", inst.StudentID).Error; err != nil {
		return nil, fmt.Errorf("engine: load student %s: %w", inst.StudentID, err)
	}

	currency := "AUD"
	var plan models.PaymentPlan
	if err := e.db.WithContext(ctx).First(&plan, "id = ?", inst.PlanID).Error; err == nil && plan.Currency != "" {
		currency = plan.Currency
	}

	data := map[string]string{
		"student_name": student.FullName(),
		"agency_name":  ac.agency.Name,
		"amount":       FormatAmount(inst.AmountCents, currency),
		"currency":     currency,
		"due_date":     inst.DueDate.Format("2 Jan 2006"),
	}

	switch eventType {
	case models.EventDueSoon:
		data["days_until_due"] = strconv.Itoa(DaysUntilDue(inst, ac.loc, occurredAt))
	case models.EventPaymentReceived:
		data["paid_date"] = occurredAt.In(ac.loc).Format("2 Jan 2006")
	}

	return data, nil
}

// HandlePaymentReceived fans out payment_received notifications for one
// installment, invoked by the payment collaborator after it records a
// payment. The dedup ledger bounds repeats per lifecycle cycle.
func (e *Engine) HandlePaymentReceived(ctx context.Context, installmentID string) (notify.DispatchSummary, error) {
	var inst models.Installment
	if err := e.db.WithContext(ctx).First(&inst, "id = ?", installmentID).Error; err != nil {
		return notify.DispatchSummary{}, fmt.Errorf("engine: load installment %s: %w", installmentID, err)
	}

	var agency models.Agency
	if err := e.db.WithContext(ctx).First(&agency, "id = ?", inst.AgencyID).Error; err != nil {
		return notify.DispatchSummary{}, fmt.Errorf("engine: load agency %s: %w", inst.AgencyID, err)
	}

	ac := agencyContext{
		agency:    agency,
		threshold: ClampThreshold(agency.DueSoonThresholdDays),
		loc:       agency.Location(),
	}

	return e.fanOut(ctx, ac, inst, models.EventPaymentReceived, e.clock())
}
