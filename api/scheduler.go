/*
scheduler.go - Payment and delivery reminder scheduler

PURPOSE:
  Periodically scans the ledger for unpaid sales past their expected
  payment date and for pending orders due today, and records one
  Reminder per subject per day. Delivering the reminder (push, SMS) is
  not done here; clients list reminders through the API.

DESIGN:
  - One ReminderScheduler is constructed at startup with its store
    injected; there is no package-level instance
  - robfig/cron drives the schedule (seconds field enabled)
  - RunOnce is idempotent: reminder keys are unique per subject and day,
    so a second run on the same day records nothing new

CONFIGURATION:
  - Schedule: cron spec, default "0 0 8 * * *" (every day at 08:00)
  - Enabled: whether Start registers the job

USAGE:
  rs := NewReminderScheduler(store, logger, cfg.ReminderSchedule)
  if err := rs.Start(); err != nil { ... }
  defer rs.Stop()

SEE ALSO:
  - ledger/types.go: Reminder
  - handlers.go: Handler.Reminders
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/savon-distrib/ledger-engine/ledger"
)

const DefaultReminderSchedule = "0 0 8 * * *"

// ReminderScheduler records due reminders on a cron schedule.
type ReminderScheduler struct {
	Store    ledger.Store
	Logger   *logrus.Logger
	Schedule string
	Enabled  bool
	Currency string
	Now      func() time.Time

	cron  *cron.Cron
	jobID cron.EntryID
	mu    sync.Mutex
}

// RunResult summarizes one scan.
type RunResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"` // already recorded today
}

// NewReminderScheduler creates an enabled scheduler. An empty schedule
// uses DefaultReminderSchedule.
func NewReminderScheduler(store ledger.Store, logger *logrus.Logger, schedule string) *ReminderScheduler {
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ReminderScheduler{
		Store:    store,
		Logger:   logger,
		Schedule: schedule,
		Enabled:  true,
		Currency: "DZD",
		Now:      time.Now,
	}
}

// Start registers the job and starts the cron runner.
func (rs *ReminderScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	log := rs.Logger.WithField("module", "scheduler")
	if !rs.Enabled {
		log.Info("reminder scheduler disabled, not starting")
		return nil
	}

	rs.cron = cron.New(cron.WithSeconds())
	id, err := rs.cron.AddFunc(rs.Schedule, func() {
		if _, err := rs.RunOnce(context.Background(), rs.Now()); err != nil {
			log.WithError(err).Error("reminder run failed")
		}
	})
	if err != nil {
		rs.cron = nil
		return fmt.Errorf("error scheduling reminder job: %w", err)
	}
	rs.jobID = id
	rs.cron.Start()

	log.WithField("schedule", rs.Schedule).Info("reminder scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron != nil {
		<-rs.cron.Stop().Done()
		rs.cron = nil
		rs.Logger.WithField("module", "scheduler").Info("reminder scheduler stopped")
	}
}

// NextRun returns the next scheduled run, or the zero time when stopped.
func (rs *ReminderScheduler) NextRun() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cron == nil {
		return time.Time{}
	}
	return rs.cron.Entry(rs.jobID).Next
}

// RunOnce scans the ledger as of now and records missing reminders.
func (rs *ReminderScheduler) RunOnce(ctx context.Context, now time.Time) (RunResult, error) {
	var result RunResult

	sales, err := rs.Store.LoadSales(ctx)
	if err != nil {
		return result, fmt.Errorf("load sales: %w", err)
	}
	orders, err := rs.Store.ListOrders(ctx, ledger.OrderPending)
	if err != nil {
		return result, fmt.Errorf("load orders: %w", err)
	}
	sms, err := rs.Store.LoadSupermarkets(ctx)
	if err != nil {
		return result, fmt.Errorf("load supermarkets: %w", err)
	}
	names := supermarketNames(sms)

	var due []ledger.Reminder
	for _, s := range sales {
		if !s.IsOverdue(now) {
			continue
		}
		due = append(due, ledger.Reminder{
			Key:           reminderKey(ledger.ReminderPaymentDue, string(s.ID), now),
			Kind:          ledger.ReminderPaymentDue,
			SubjectID:     string(s.ID),
			SupermarketID: s.SupermarketID,
			Message: fmt.Sprintf("%s: %s restant sur la livraison du %s",
				nameOr(names, s.SupermarketID), ledger.FormatMoney(s.RemainingAmount, rs.Currency), s.Date.Format("02/01/2006")),
			DueDate: *s.ExpectedPaymentDate,
		})
	}

	today := ledger.DayPeriod(now)
	for _, o := range orders {
		if o.ScheduledDate.After(today.End) {
			continue
		}
		due = append(due, ledger.Reminder{
			Key:           reminderKey(ledger.ReminderOrderDue, string(o.ID), now),
			Kind:          ledger.ReminderOrderDue,
			SubjectID:     string(o.ID),
			SupermarketID: o.SupermarketID,
			Message: fmt.Sprintf("%s: livraison de %d unités prévue le %s",
				nameOr(names, o.SupermarketID), o.Quantity, o.ScheduledDate.Format("02/01/2006")),
			DueDate: o.ScheduledDate,
		})
	}

	for _, r := range due {
		r.ID = uuid.NewString()
		r.CreatedAt = now
		err := rs.Store.SaveReminder(ctx, r)
		switch {
		case errors.Is(err, ledger.ErrDuplicateID):
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("save reminder %s: %w", r.Key, err)
		default:
			result.Created++
		}
	}

	rs.Logger.WithFields(logrus.Fields{
		"module":  "scheduler",
		"created": result.Created,
		"skipped": result.Skipped,
	}).Info("reminder run complete")
	return result, nil
}

// reminderKey makes reminders unique per kind, subject and calendar day.
func reminderKey(kind ledger.ReminderKind, subject string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", kind, subject, now.Format("2006-01-02"))
}

func nameOr(names map[ledger.SupermarketID]string, id ledger.SupermarketID) string {
	if n := names[id]; n != "" {
		return n
	}
	return string(id)
}

// =============================================================================
// REMINDER HANDLERS
// =============================================================================

func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.Store.ListReminders(r.Context())
	if err != nil {
		h.fail(w, r, "ListReminders", "Failed to list reminders", err)
		return
	}

	dtos := make([]ReminderDTO, len(reminders))
	for i, rem := range reminders {
		dtos[i] = toReminderDTO(rem)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunReminders triggers one scan immediately.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	rs := h.Reminders
	if rs == nil {
		rs = NewReminderScheduler(h.Store, h.Logger, "")
		rs.Currency = h.Currency
	}

	result, err := rs.RunOnce(r.Context(), h.Now())
	if err != nil {
		h.fail(w, r, "RunReminders", "Reminder run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
