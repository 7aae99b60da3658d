package models

import (
	"time"
)

// UserLocation представляет сохранённое местоположение пользователя.
// Запись в бд - зеркало реестра live-сессий: при сбое записи
// актуальным считается состояние в памяти.
type UserLocation struct {
	ID                 int64     `json:"id"`
	UserID             string    `json:"user_id"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	NotificationRadius int       `json:"notification_radius"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
