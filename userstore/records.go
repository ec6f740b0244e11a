package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	// DefaultListLimit caps list endpoints that do not ask for everything.
	DefaultListLimit = 30
)

func (s *Store) AddWeight(ctx context.Context, w WeightEntry) (WeightEntry, error) {
	if err := w.Validate(); err != nil {
		return WeightEntry{}, err
	}
	err := s.db.QueryRowContext(ctx, `insert into weight_entries(date, weight, unit, notes) values (?, ?, ?, ?) returning id`,
		w.Date, w.Weight, w.Unit, w.Notes).Scan(&w.ID)
	if err != nil {
		return WeightEntry{}, fmt.Errorf("unable to add weight entry, cause %w", err)
	}
	return w, nil
}

// ListWeight returns the latest entries first. A non-positive limit
// returns everything.
func (s *Store) ListWeight(ctx context.Context, limit int) ([]WeightEntry, error) {
	rows, err := s.db.QueryContext(ctx, `select id, date, weight, unit, notes from weight_entries order by date desc, id desc limit ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("unable to list weight entries, cause %w", err)
	}
	defer rows.Close()
	out := []WeightEntry{}
	for rows.Next() {
		var w WeightEntry
		if err := rows.Scan(&w.ID, &w.Date, &w.Weight, &w.Unit, &w.Notes); err != nil {
			return nil, fmt.Errorf("unable to scan weight entry, cause %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) GetWeight(ctx context.Context, id int64) (WeightEntry, error) {
	w := WeightEntry{ID: id}
	err := s.db.QueryRowContext(ctx, `select date, weight, unit, notes from weight_entries where id = ?`, id).
		Scan(&w.Date, &w.Weight, &w.Unit, &w.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return WeightEntry{}, RecordNotFound{Kind: "weight entry", ID: id}
	} else if err != nil {
		return WeightEntry{}, fmt.Errorf("unable to load weight entry %v, cause %w", id, err)
	}
	return w, nil
}

func (s *Store) UpdateWeight(ctx context.Context, w WeightEntry) (WeightEntry, error) {
	if err := w.Validate(); err != nil {
		return WeightEntry{}, err
	}
	res, err := s.db.ExecContext(ctx, `update weight_entries set date = ?, weight = ?, unit = ?, notes = ? where id = ?`,
		w.Date, w.Weight, w.Unit, w.Notes, w.ID)
	if err != nil {
		return WeightEntry{}, fmt.Errorf("unable to update weight entry %v, cause %w", w.ID, err)
	}
	return w, expectOne(res, "weight entry", w.ID)
}

func (s *Store) DeleteWeight(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "weight_entries", "weight entry", id)
}

func (s *Store) AddExercise(ctx context.Context, e Exercise) (Exercise, error) {
	if err := e.Validate(); err != nil {
		return Exercise{}, err
	}
	err := s.db.QueryRowContext(ctx, `insert into exercises(date, type, duration, calories, distance, notes) values (?, ?, ?, ?, ?, ?) returning id`,
		e.Date, e.Type, e.Duration, e.Calories, e.Distance, e.Notes).Scan(&e.ID)
	if err != nil {
		return Exercise{}, fmt.Errorf("unable to add exercise, cause %w", err)
	}
	return e, nil
}

func (s *Store) ListExercises(ctx context.Context, limit int) ([]Exercise, error) {
	return s.queryExercises(ctx, `select id, date, type, duration, calories, distance, notes from exercises order by date desc, id desc limit ?`, sqlLimit(limit))
}

func (s *Store) GetExercise(ctx context.Context, id int64) (Exercise, error) {
	out, err := s.queryExercises(ctx, `select id, date, type, duration, calories, distance, notes from exercises where id = ?`, id)
	if err != nil {
		return Exercise{}, err
	}
	if len(out) == 0 {
		return Exercise{}, RecordNotFound{Kind: "exercise", ID: id}
	}
	return out[0], nil
}

func (s *Store) UpdateExercise(ctx context.Context, e Exercise) (Exercise, error) {
	if err := e.Validate(); err != nil {
		return Exercise{}, err
	}
	res, err := s.db.ExecContext(ctx, `update exercises set date = ?, type = ?, duration = ?, calories = ?, distance = ?, notes = ? where id = ?`,
		e.Date, e.Type, e.Duration, e.Calories, e.Distance, e.Notes, e.ID)
	if err != nil {
		return Exercise{}, fmt.Errorf("unable to update exercise %v, cause %w", e.ID, err)
	}
	return e, expectOne(res, "exercise", e.ID)
}

func (s *Store) DeleteExercise(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "exercises", "exercise", id)
}

func (s *Store) queryExercises(ctx context.Context, query string, args ...interface{}) ([]Exercise, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query exercises, cause %w", err)
	}
	defer rows.Close()
	out := []Exercise{}
	for rows.Next() {
		var e Exercise
		var calories sql.NullInt64
		var distance sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Date, &e.Type, &e.Duration, &calories, &distance, &e.Notes); err != nil {
			return nil, fmt.Errorf("unable to scan exercise, cause %w", err)
		}
		e.Calories = intPtr(calories)
		e.Distance = floatPtr(distance)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddMeal(ctx context.Context, m Meal) (Meal, error) {
	if err := m.Validate(); err != nil {
		return Meal{}, err
	}
	err := s.db.QueryRowContext(ctx, `insert into meals(date, time, meal_type, description, calories, protein, carbs, fats, notes)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?) returning id`,
		m.Date, m.Time, m.MealType, m.Description, m.Calories, m.Protein, m.Carbs, m.Fats, m.Notes).Scan(&m.ID)
	if err != nil {
		return Meal{}, fmt.Errorf("unable to add meal, cause %w", err)
	}
	return m, nil
}

func (s *Store) ListMeals(ctx context.Context, limit int) ([]Meal, error) {
	return s.queryMeals(ctx, `select id, date, time, meal_type, description, calories, protein, carbs, fats, notes
		from meals order by date desc, time desc limit ?`, sqlLimit(limit))
}

func (s *Store) GetMeal(ctx context.Context, id int64) (Meal, error) {
	out, err := s.queryMeals(ctx, `select id, date, time, meal_type, description, calories, protein, carbs, fats, notes
		from meals where id = ?`, id)
	if err != nil {
		return Meal{}, err
	}
	if len(out) == 0 {
		return Meal{}, RecordNotFound{Kind: "meal", ID: id}
	}
	return out[0], nil
}

func (s *Store) UpdateMeal(ctx context.Context, m Meal) (Meal, error) {
	if err := m.Validate(); err != nil {
		return Meal{}, err
	}
	res, err := s.db.ExecContext(ctx, `update meals set date = ?, time = ?, meal_type = ?, description = ?,
		calories = ?, protein = ?, carbs = ?, fats = ?, notes = ? where id = ?`,
		m.Date, m.Time, m.MealType, m.Description, m.Calories, m.Protein, m.Carbs, m.Fats, m.Notes, m.ID)
	if err != nil {
		return Meal{}, fmt.Errorf("unable to update meal %v, cause %w", m.ID, err)
	}
	return m, expectOne(res, "meal", m.ID)
}

func (s *Store) DeleteMeal(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "meals", "meal", id)
}

func (s *Store) queryMeals(ctx context.Context, query string, args ...interface{}) ([]Meal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query meals, cause %w", err)
	}
	defer rows.Close()
	out := []Meal{}
	for rows.Next() {
		var m Meal
		var calories sql.NullInt64
		var protein, carbs, fats sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.Date, &m.Time, &m.MealType, &m.Description, &calories, &protein, &carbs, &fats, &m.Notes); err != nil {
			return nil, fmt.Errorf("unable to scan meal, cause %w", err)
		}
		m.Calories = intPtr(calories)
		m.Protein = floatPtr(protein)
		m.Carbs = floatPtr(carbs)
		m.Fats = floatPtr(fats)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AddGoal(ctx context.Context, g Goal) (Goal, error) {
	if err := g.Validate(); err != nil {
		return Goal{}, err
	}
	err := s.db.QueryRowContext(ctx, `insert into goals(type, target_value, current_value, deadline, description, completed)
		values (?, ?, ?, ?, ?, ?) returning id`,
		g.Type, g.TargetValue, g.CurrentValue, nullString(g.Deadline), g.Description, g.Completed).Scan(&g.ID)
	if err != nil {
		return Goal{}, fmt.Errorf("unable to add goal, cause %w", err)
	}
	return g, nil
}

// ListGoals returns open goals first, then by deadline.
func (s *Store) ListGoals(ctx context.Context) ([]Goal, error) {
	return s.queryGoals(ctx, `select id, type, target_value, current_value, deadline, description, completed
		from goals order by completed asc, deadline is null, deadline asc, id asc`)
}

func (s *Store) GetGoal(ctx context.Context, id int64) (Goal, error) {
	out, err := s.queryGoals(ctx, `select id, type, target_value, current_value, deadline, description, completed
		from goals where id = ?`, id)
	if err != nil {
		return Goal{}, err
	}
	if len(out) == 0 {
		return Goal{}, RecordNotFound{Kind: "goal", ID: id}
	}
	return out[0], nil
}

func (s *Store) UpdateGoal(ctx context.Context, g Goal) (Goal, error) {
	if err := g.Validate(); err != nil {
		return Goal{}, err
	}
	res, err := s.db.ExecContext(ctx, `update goals set type = ?, target_value = ?, current_value = ?, deadline = ?,
		description = ?, completed = ? where id = ?`,
		g.Type, g.TargetValue, g.CurrentValue, nullString(g.Deadline), g.Description, g.Completed, g.ID)
	if err != nil {
		return Goal{}, fmt.Errorf("unable to update goal %v, cause %w", g.ID, err)
	}
	return g, expectOne(res, "goal", g.ID)
}

// ToggleGoal flips the completed flag and returns the updated goal.
func (s *Store) ToggleGoal(ctx context.Context, id int64) (Goal, error) {
	res, err := s.db.ExecContext(ctx, `update goals set completed = 1 - completed where id = ?`, id)
	if err != nil {
		return Goal{}, fmt.Errorf("unable to toggle goal %v, cause %w", id, err)
	}
	if err := expectOne(res, "goal", id); err != nil {
		return Goal{}, err
	}
	return s.GetGoal(ctx, id)
}

func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "goals", "goal", id)
}

func (s *Store) queryGoals(ctx context.Context, query string, args ...interface{}) ([]Goal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query goals, cause %w", err)
	}
	defer rows.Close()
	out := []Goal{}
	for rows.Next() {
		var g Goal
		var current sql.NullFloat64
		var deadline sql.NullString
		if err := rows.Scan(&g.ID, &g.Type, &g.TargetValue, &current, &deadline, &g.Description, &g.Completed); err != nil {
			return nil, fmt.Errorf("unable to scan goal, cause %w", err)
		}
		g.CurrentValue = floatPtr(current)
		g.Deadline = deadline.String
		out = append(out, g)
	}
	return out, rows.Err()
}

// deleteByID is only called with constant table names.
func (s *Store) deleteByID(ctx context.Context, table, kind string, id int64) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`delete from %v where id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("unable to delete %v %v, cause %w", kind, id, err)
	}
	return expectOne(res, kind, id)
}

func expectOne(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to check affected rows, cause %w", err)
	}
	if n == 0 {
		return RecordNotFound{Kind: kind, ID: id}
	}
	return nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
