package habits

import (
	"github.com/google/uuid"

	"github.com/arnold/habitgrid-api/internal/docstore"
)

func UserPath(uid uuid.UUID) string {
	return docstore.Doc("users", uid.String())
}

func HabitsPath(uid uuid.UUID) string {
	return docstore.Doc(UserPath(uid), "habits")
}

func HabitPath(uid uuid.UUID, habitID string) string {
	return docstore.Doc(HabitsPath(uid), habitID)
}

func AlarmsPath(uid uuid.UUID, habitID string) string {
	return docstore.Doc(HabitPath(uid, habitID), "alarms")
}

func AlarmPath(uid uuid.UUID, habitID, alarmID string) string {
	return docstore.Doc(AlarmsPath(uid, habitID), alarmID)
}
