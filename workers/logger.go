package workers

import "rentwatch/models"

// LogFunc is a function that logs to the tick_logs table
type LogFunc func(level models.LogLevel, userID int64, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, userID int64, message string) {}
