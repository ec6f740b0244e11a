package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Summary collects the dashboard for the given day. The four sub-queries are
// independent and run concurrently.
func (s *Store) Summary(ctx context.Context, day time.Time) (Summary, error) {
	sum := Summary{Day: day.Format(DateLayout)}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var w WeightEntry
		err := s.db.QueryRowContext(ctx, `select id, date, weight, unit, notes from weight_entries order by date desc, id desc limit 1`).
			Scan(&w.ID, &w.Date, &w.Weight, &w.Unit, &w.Notes)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		} else if err != nil {
			return fmt.Errorf("unable to load recent weight, cause %w", err)
		}
		sum.RecentWeight = &w
		return nil
	})
	group.Go(func() error {
		var err error
		sum.TodayExercises, err = s.queryExercises(ctx, `select id, date, type, duration, calories, distance, notes
			from exercises where date = ? order by id asc`, sum.Day)
		return err
	})
	group.Go(func() error {
		var err error
		sum.TodayMeals, err = s.queryMeals(ctx, `select id, date, time, meal_type, description, calories, protein, carbs, fats, notes
			from meals where date = ? order by time asc`, sum.Day)
		return err
	})
	group.Go(func() error {
		var err error
		sum.ActiveGoals, err = s.queryGoals(ctx, `select id, type, target_value, current_value, deadline, description, completed
			from goals where completed = 0 order by deadline is null, deadline asc, id asc`)
		return err
	})
	if err := group.Wait(); err != nil {
		return Summary{}, err
	}
	for _, m := range sum.TodayMeals {
		if m.Calories != nil {
			sum.TodayCalories += *m.Calories
		}
	}
	for _, e := range sum.TodayExercises {
		sum.TodayExerciseMinutes += e.Duration
	}
	return sum, nil
}
