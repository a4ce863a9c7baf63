package models

import (
	"time"

	"github.com/arnold/habitgrid-api/internal/achievement"
	"github.com/arnold/habitgrid-api/internal/notify"
)

// Field limits, counted in characters.
const (
	MissionMaxLength     = 16
	MissionEditMaxLength = 14
	DetailMaxLength      = 70
)

// HabitDoc is stored at users/{uid}/habits/{hid}.
type HabitDoc struct {
	ID                 string               `firestore:"-" json:"habitItemId"`
	HabitMission       string               `firestore:"habitMission" json:"habitMission"`
	HabitMissionDetail string               `firestore:"habitMissionDetail" json:"habitMissionDetail"`
	Achievements       []achievement.Record `firestore:"achievements" json:"achievements"`
	UpdatedAt          time.Time            `firestore:"updatedAt" json:"updatedAt"`
}

func (h HabitDoc) Ledger() *achievement.Ledger {
	return achievement.FromRecords(h.Achievements)
}

type AlarmTime struct {
	Hours   int `firestore:"hours" json:"hours"`
	Minutes int `firestore:"minutes" json:"minutes"`
	Seconds int `firestore:"seconds" json:"seconds"`
}

func (t AlarmTime) Map() map[string]interface{} {
	return map[string]interface{}{"hours": t.Hours, "minutes": t.Minutes, "seconds": 0}
}

// AlarmDoc is stored at users/{uid}/habits/{hid}/alarms/{aid}. The per-weekday
// scheduler handles keep the alarmIdentifier field name of existing documents.
type AlarmDoc struct {
	ID              string    `firestore:"-" json:"alarmId"`
	AlarmTime       AlarmTime `firestore:"alarmTime" json:"alarmTime"`
	RepeatDayOfWeek []bool    `firestore:"repeatDayOfWeek" json:"repeatDayOfWeek"`
	AlarmIdentifier []*string `firestore:"alarmIdentifier" json:"alarmIdentifier"`
	UpdatedAt       time.Time `firestore:"updatedAt" json:"updatedAt"`
}

func (a AlarmDoc) Mask() notify.WeekMask {
	return notify.MaskFromSlice(a.RepeatDayOfWeek)
}

func (a AlarmDoc) Identifiers() notify.Identifiers {
	return notify.IdentifiersFromSlice(a.AlarmIdentifier)
}

// Normalize pads or truncates the weekday arrays to seven entries.
func (a AlarmDoc) Normalize() AlarmDoc {
	a.RepeatDayOfWeek = a.Mask().Slice()
	a.AlarmIdentifier = a.Identifiers().Slice()
	a.AlarmTime.Seconds = 0
	return a
}

type LatestAccess struct {
	Year      int `firestore:"year" json:"year"`
	Month     int `firestore:"month" json:"month"`
	Day       int `firestore:"day" json:"day"`
	DayOfWeek int `firestore:"dayOfWeek" json:"dayOfWeek"`
}

// UserDoc is stored at users/{uid}.
type UserDoc struct {
	LatestAccess LatestAccess `firestore:"latestAccess" json:"latestAccess"`
}

// Habit DTOs
type CreateHabitRequest struct {
	HabitMission       string `json:"habitMission"`
	HabitMissionDetail string `json:"habitMissionDetail"`
}

type UpdateHabitRequest struct {
	HabitMission       *string `json:"habitMission"`
	HabitMissionDetail *string `json:"habitMissionDetail"`
}

type ToggleRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type AlarmRequest struct {
	Hours           int    `json:"hours"`
	Minutes         int    `json:"minutes"`
	RepeatDayOfWeek []bool `json:"repeatDayOfWeek"`
}
