package locale

// Message keys.
const (
	NotificationDefaultTitle = "notifications.defaultTitle"
	NotificationDefaultBody  = "notifications.defaultBody"
	HabitAddFailed           = "habit.addFailed"
	HabitUpdateFailed        = "habit.updateFailed"
	HabitDeleteFailed        = "habit.deleteFailed"
	HabitNotFound            = "habit.notFound"
	HabitLoadFailed          = "habit.loadFailed"
	ToggleFailed             = "habit.toggleFailed"
	AlarmSaveFailed          = "alarm.saveFailed"
	AlarmUpdateFailed        = "alarm.updateFailed"
	AlarmDeleteFailed        = "alarm.deleteFailed"
	AlarmNotFound            = "alarm.notFound"
	AlarmPartial             = "alarm.partial"
	AlarmEveryday            = "alarm.everyday"
	AlarmNoWeekday           = "alarm.noWeekday"
	SessionNotFound          = "session.notFound"
	SessionEnded             = "session.ended"
	SessionNoChanges         = "session.noChanges"
	MissionRequired          = "validation.missionRequired"
	MissionTooLong           = "validation.missionTooLong"
	DetailTooLong            = "validation.detailTooLong"
	InvalidDate              = "validation.invalidDate"
	InvalidTime              = "validation.invalidTime"
	InvalidBody              = "validation.invalidBody"
)

var catalog = map[string]map[string]string{
	LanguageEnglish: {
		NotificationDefaultTitle: "Habit reminder",
		NotificationDefaultBody:  "Time to work on your habit",
		HabitAddFailed:           "Failed to add habit",
		HabitUpdateFailed:        "Failed to update habit",
		HabitDeleteFailed:        "Failed to delete habit",
		HabitNotFound:            "Habit not found",
		HabitLoadFailed:          "Failed to load habits",
		ToggleFailed:             "Failed to record achievement",
		AlarmSaveFailed:          "Failed to save notification",
		AlarmUpdateFailed:        "Failed to update notification",
		AlarmDeleteFailed:        "Failed to delete notification",
		AlarmNotFound:            "Notification not found",
		AlarmPartial:             "Some weekdays could not be scheduled",
		AlarmEveryday:            "Every day",
		AlarmNoWeekday:           "Select at least one weekday",
		SessionNotFound:          "Edit session not found",
		SessionEnded:             "Edit session has ended",
		SessionNoChanges:         "Nothing to save",
		MissionRequired:          "Habit is required",
		MissionTooLong:           "Habit is too long",
		DetailTooLong:            "Detail is too long",
		InvalidDate:              "Invalid date",
		InvalidTime:              "Invalid time",
		InvalidBody:              "Invalid request body",
	},
	LanguageJapanese: {
		NotificationDefaultTitle: "習慣のリマインダー",
		NotificationDefaultBody:  "習慣に取り組む時間です",
		HabitAddFailed:           "習慣の追加に失敗しました",
		HabitUpdateFailed:        "習慣の更新に失敗しました",
		HabitDeleteFailed:        "習慣の削除に失敗しました",
		HabitNotFound:            "習慣が見つかりません",
		HabitLoadFailed:          "習慣の読み込みに失敗しました",
		ToggleFailed:             "達成状況の記録に失敗しました",
		AlarmSaveFailed:          "通知の保存に失敗しました",
		AlarmUpdateFailed:        "通知の更新に失敗しました",
		AlarmDeleteFailed:        "通知の削除に失敗しました",
		AlarmNotFound:            "通知が見つかりません",
		AlarmPartial:             "一部の曜日の通知を登録できませんでした",
		AlarmEveryday:            "毎日",
		AlarmNoWeekday:           "曜日を1つ以上選択してください",
		SessionNotFound:          "編集セッションが見つかりません",
		SessionEnded:             "編集セッションは終了しました",
		SessionNoChanges:         "保存する変更はありません",
		MissionRequired:          "習慣を入力してください",
		MissionTooLong:           "習慣が長すぎます",
		DetailTooLong:            "詳細が長すぎます",
		InvalidDate:              "日付が正しくありません",
		InvalidTime:              "時刻が正しくありません",
		InvalidBody:              "リクエストが正しくありません",
	},
}

// T returns the message for key, falling back to Default and then to the key.
func T(language, key string) string {
	if lang := NormalizeLanguage(language); lang != "" {
		if msg, ok := catalog[lang][key]; ok {
			return msg
		}
	}
	if msg, ok := catalog[Default][key]; ok {
		return msg
	}
	return key
}
