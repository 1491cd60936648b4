package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// HistoryArchiver exports and prunes resolved history older than a retention
// window.
type HistoryArchiver interface {
	Archive(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
	PruneExports(ctx context.Context, maxAge time.Duration, now time.Time) (int, error)
}

// Archiver moves old bookmark history from the database to S3 cold storage
// and removes user exports past their retention.
type Archiver struct {
	history         HistoryArchiver
	retention       time.Duration
	exportRetention time.Duration
	notifier        EventNotifier
	now             func() time.Time
	logger          *slog.Logger
}

// NewArchiver creates a new Archiver keeping retentionDays of history in the
// database and exportDays of user exports in storage. A zero exportDays
// keeps exports forever.
func NewArchiver(history HistoryArchiver, retentionDays, exportDays int, notifier EventNotifier, logger *slog.Logger) *Archiver {
	return &Archiver{
		history:         history,
		retention:       time.Duration(retentionDays) * 24 * time.Hour,
		exportRetention: time.Duration(exportDays) * 24 * time.Hour,
		notifier:        notifier,
		now:             time.Now,
		logger:          logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	now := a.now().UTC()
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", now.Add(-a.retention)),
		slog.Duration("retention", a.retention),
	)

	n, err := a.history.Archive(ctx, a.retention, now)
	if err != nil {
		return 0, fmt.Errorf("pipeline: archive history: %w", err)
	}
	pruned, err := a.history.PruneExports(ctx, a.exportRetention, now)
	if err != nil {
		a.logger.WarnContext(ctx, "export prune failed",
			slog.Int("exports_pruned", pruned),
			slog.String("error", err.Error()),
		)
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("entries_archived", n),
		slog.Int("exports_pruned", pruned),
	)

	if n > 0 && a.notifier != nil {
		msg := fmt.Sprintf("Archived %d history entries older than %s", n, now.Add(-a.retention).Format("2006-01-02"))
		if err := a.notifier.Notify(ctx, "archive", "History archived", msg); err != nil {
			a.logger.WarnContext(ctx, "archive notification failed", slog.String("error", err.Error()))
		}
	}
	return n, nil
}

// RunCron runs the archiver on a cron schedule until the context is cancelled.
// It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week"
//
// Example: "0 3 * * *" runs at 3:00 AM every day.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string, trigger <-chan struct{}) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("pipeline: parse cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Debug("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-trigger:
			timer.Stop()
			a.logger.InfoContext(ctx, "manual archive triggered")
		case <-timer.C:
		}
		if _, err := a.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
	}
}

// cronField represents a parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   map[int]bool
}

func (f cronField) matches(val int) bool {
	return f.wildcard || f.values[val]
}

// parseCronField parses a single cron field. Supported forms are "*", "5",
// "1,15", "1-5" and steps such as "*/15" or "0-30/10".
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid cron step %q", part)
			}
			step, part = n, base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return cronField{}, fmt.Errorf("invalid cron range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return cronField{}, fmt.Errorf("cron value %q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			values[v] = true
		}
	}
	return cronField{values: values}, nil
}

// parsedCron holds five parsed cron fields.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// matchesTime returns true if the given time matches all five cron fields.
func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a 5-field cron expression into a parsedCron struct.
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return parsedCron{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}

	return parsedCron{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first minute strictly after 'after' that matches. It
// searches minute-by-minute up to one year ahead.
func (c parsedCron) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}

// nextCronTime calculates the next time after 'after' that matches the given
// cron expression.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	c, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return c.next(after)
}
