package userstore

import (
	"time"
)

const (
	// DateLayout is the layout used for every date-only column.
	DateLayout = "2006-01-02"
	// TimeLayout is the layout used for meal times.
	TimeLayout = "15:04"
)

type (
	WeightEntry struct {
		ID     int64   `json:"id"`
		Date   string  `json:"date"`
		Weight float64 `json:"weight"`
		Unit   string  `json:"unit"`
		Notes  string  `json:"notes,omitempty"`
	}

	Exercise struct {
		ID       int64    `json:"id"`
		Date     string   `json:"date"`
		Type     string   `json:"type"`
		Duration int      `json:"duration"`
		Calories *int     `json:"calories,omitempty"`
		Distance *float64 `json:"distance,omitempty"`
		Notes    string   `json:"notes,omitempty"`
	}

	Meal struct {
		ID          int64    `json:"id"`
		Date        string   `json:"date"`
		Time        string   `json:"time"`
		MealType    string   `json:"mealType"`
		Description string   `json:"description"`
		Calories    *int     `json:"calories,omitempty"`
		Protein     *float64 `json:"protein,omitempty"`
		Carbs       *float64 `json:"carbs,omitempty"`
		Fats        *float64 `json:"fats,omitempty"`
		Notes       string   `json:"notes,omitempty"`
	}

	Goal struct {
		ID           int64    `json:"id"`
		Type         string   `json:"type"`
		TargetValue  float64  `json:"targetValue"`
		CurrentValue *float64 `json:"currentValue,omitempty"`
		Deadline     string   `json:"deadline,omitempty"`
		Description  string   `json:"description,omitempty"`
		Completed    bool     `json:"completed"`
	}

	// Summary is the dashboard view of a single day.
	Summary struct {
		Day                  string       `json:"day"`
		RecentWeight         *WeightEntry `json:"recentWeight"`
		TodayExercises       []Exercise   `json:"todayExercises"`
		TodayMeals           []Meal       `json:"todayMeals"`
		ActiveGoals          []Goal       `json:"activeGoals"`
		TodayCalories        int          `json:"todayCalories"`
		TodayExerciseMinutes int          `json:"todayExerciseMinutes"`
	}
)

func (w *WeightEntry) Validate() error {
	if w.Date == "" {
		return InvalidRecord{Field: "date", Reason: "is required"}
	}
	if err := checkDate("date", w.Date); err != nil {
		return err
	}
	if w.Weight <= 0 {
		return InvalidRecord{Field: "weight", Reason: "must be positive"}
	}
	switch w.Unit {
	case "":
		w.Unit = "lbs"
	case "kg", "lbs":
	default:
		return InvalidRecord{Field: "unit", Reason: "must be kg or lbs"}
	}
	return nil
}

func (e *Exercise) Validate() error {
	if e.Date == "" || e.Type == "" {
		return InvalidRecord{Field: "date, type", Reason: "are required"}
	}
	if err := checkDate("date", e.Date); err != nil {
		return err
	}
	if e.Duration <= 0 {
		return InvalidRecord{Field: "duration", Reason: "must be a positive number of minutes"}
	}
	return nil
}

func (m *Meal) Validate() error {
	if m.Date == "" || m.Time == "" || m.Description == "" {
		return InvalidRecord{Field: "date, time, description", Reason: "are required"}
	}
	if err := checkDate("date", m.Date); err != nil {
		return err
	}
	if _, err := time.Parse(TimeLayout, m.Time); err != nil {
		return InvalidRecord{Field: "time", Reason: "must use HH:MM"}
	}
	switch m.MealType {
	case "breakfast", "lunch", "dinner", "snack":
	default:
		return InvalidRecord{Field: "mealType", Reason: "must be breakfast, lunch, dinner or snack"}
	}
	return nil
}

func (g *Goal) Validate() error {
	switch g.Type {
	case "weight", "exercise", "calories":
	default:
		return InvalidRecord{Field: "type", Reason: "must be weight, exercise or calories"}
	}
	if g.TargetValue <= 0 {
		return InvalidRecord{Field: "targetValue", Reason: "must be positive"}
	}
	if g.Deadline != "" {
		return checkDate("deadline", g.Deadline)
	}
	return nil
}

func checkDate(field, val string) error {
	if _, err := time.Parse(DateLayout, val); err != nil {
		return InvalidRecord{Field: field, Reason: "must use YYYY-MM-DD"}
	}
	return nil
}
