package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdStartMonitoring CommandType = "start_monitoring"
	CmdStopMonitoring  CommandType = "stop_monitoring"
	CmdSetCriteria     CommandType = "set_criteria"
	CmdTickNow         CommandType = "tick_now"
	CmdGetCriteria     CommandType = "get_criteria"
	CmdListSources     CommandType = "list_sources"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	UserID   int64     `json:"user_id"`
	Criteria *Criteria `json:"criteria,omitempty"`
}
