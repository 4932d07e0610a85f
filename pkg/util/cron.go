package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field cron format (minute, hour, day of month, month, day of week),
// the same dialect the asynq scheduler accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr reports whether cronExpr parses as a five-field schedule.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// NextCronTime returns the first occurrence of cronExpr after from, in UTC.
func NextCronTime(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from.UTC()), nil
}
