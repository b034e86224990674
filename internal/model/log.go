package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// LogKind names the entity a log entry is attached to.
type LogKind string

const (
	LogTask     LogKind = "task"
	LogIdea     LogKind = "idea"
	LogUniverse LogKind = "universe"
)

// Valid reports whether k is a known log kind.
func (k LogKind) Valid() bool {
	return k == LogTask || k == LogIdea || k == LogUniverse
}

// LogTarget is what a log entry belongs to. The zero value is a standalone log.
type LogTarget struct {
	kind LogKind
	id   uint
}

func LogOnTask(id uint) LogTarget     { return LogTarget{kind: LogTask, id: id} }
func LogOnIdea(id uint) LogTarget     { return LogTarget{kind: LogIdea, id: id} }
func LogOnUniverse(id uint) LogTarget { return LogTarget{kind: LogUniverse, id: id} }
func Standalone() LogTarget           { return LogTarget{} }

// Standalone reports whether the target is empty.
func (t LogTarget) Standalone() bool { return t.kind == "" }

func (t LogTarget) Kind() LogKind { return t.kind }
func (t LogTarget) ID() uint      { return t.id }

var ErrHalfLogTarget = errors.New("log: loggable type and id must be set together")

// Log is a timestamped record of minutes spent and/or notes.
type Log struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	LoggableType *LogKind  `gorm:"index:idx_log_target" json:"loggable_type"`
	LoggableID   *uint     `gorm:"index:idx_log_target" json:"loggable_id"`
	Minutes      *int      `json:"minutes"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewLog builds a log entry for target.
func NewLog(target LogTarget, minutes *int, notes *string) Log {
	entry := Log{Minutes: minutes, Notes: notes}
	if !target.Standalone() {
		kind, id := target.kind, target.id
		entry.LoggableType = &kind
		entry.LoggableID = &id
	}
	return entry
}

// Target decodes the stored pair.
func (l Log) Target() LogTarget {
	if l.LoggableType == nil || l.LoggableID == nil {
		return Standalone()
	}
	return LogTarget{kind: *l.LoggableType, id: *l.LoggableID}
}

func (l *Log) BeforeSave(tx *gorm.DB) error {
	if (l.LoggableType == nil) != (l.LoggableID == nil) {
		return ErrHalfLogTarget
	}
	if l.LoggableType != nil && !l.LoggableType.Valid() {
		return errors.New("log: unknown loggable type " + string(*l.LoggableType))
	}
	return nil
}
