package domain

import "time"

// RollbackCheckpoint снимок состояния перед выполнением обратимого действия
type RollbackCheckpoint struct {
	ID         string                 `json:"id"`
	ActionID   string                 `json:"action_id"`
	DecisionID string                 `json:"decision_id"`
	ActionType string                 `json:"action_type"`
	State      map[string]interface{} `json:"state"`
	CreatedAt  time.Time              `json:"created_at"`
}

// DailySummary агрегат за день, который хост передает в нотификатор
type DailySummary struct {
	Date         time.Time `json:"date"`
	AutoExecuted int       `json:"auto_executed"`
	Queued       int       `json:"queued"`
	Approved     int       `json:"approved"`
	Rejected     int       `json:"rejected"`
	Escalated    int       `json:"escalated"`
	Expired      int       `json:"expired"`
	TotalValue   float64   `json:"total_value"`
}

// Total число действий, прошедших через систему
func (s DailySummary) Total() int {
	return s.AutoExecuted + s.Queued
}
