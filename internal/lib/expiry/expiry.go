// Package expiry считает новую дату окончания подписки.
package expiry

import (
	"strconv"
	"strings"
	"time"
)

// Day длина бонусного дня.
const Day = 24 * time.Hour

// Extend возвращает новую дату окончания подписки после начисления days дней.
// Отсчёт ведётся от max(current, now): истёкшая подписка продлевается от текущего
// момента. nil означает, что подписки нет. Результат округляется до целых секунд.
func Extend(current *time.Time, days int, now time.Time) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	if days < 0 {
		days = 0
	}
	return base.Add(time.Duration(days) * Day).Truncate(time.Second)
}

// Parse разбирает дату окончания из ответа панели: RFC3339 или unix-секунды.
// Пустое или нераспознанное значение даёт nil и трактуется как истёкшая подписка.
func Parse(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
		t := time.Unix(sec, 0).UTC()
		return &t
	}
	return nil
}

// FormatISO форматирует дату для API, принимающих ISO-8601.
func FormatISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// FormatUnix форматирует дату для API, принимающих unix-время.
func FormatUnix(t time.Time) int64 {
	return t.Unix()
}
