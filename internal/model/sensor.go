package model

import "time"

// SensorReading は圃場センサーの1回分の計測値を表す。
type SensorReading struct {
	ID           int64
	FarmID       string
	SoilMoisture float64
	Temperature  float64
	Humidity     float64
	Timestamp    time.Time
	CreatedAt    time.Time
}
