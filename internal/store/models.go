// Package store implements the Store contract (spec §4.4) against Postgres
// via gorm, including the atomic SaveSolution transaction (spec §4.4, §8
// property 7).
package store

import "time"

// UserType enumerates the persisted user roles (spec §6 Users).
type UserType string

const (
	UserTypeAdmin     UserType = "Admin"
	UserTypeDriver    UserType = "Driver"
	UserTypePassenger UserType = "Passenger"
)

// User mirrors the Users table. No login/registration flow is exposed
// through the Admin API — credentials management is an out-of-scope
// external collaborator (spec §1 Non-goals) — but the schema is persisted
// since Vehicles/Passengers reference it.
type User struct {
	ID           int64 `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:100;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	UserType     UserType `gorm:"size:20;not null"`
	Name         string `gorm:"size:150"`
	Email        string `gorm:"size:150"`
	Phone        string `gorm:"size:30"`
	CreatedDate  time.Time `gorm:"autoCreateTime"`
}

// Vehicle mirrors the Vehicles table.
type Vehicle struct {
	ID                int64 `gorm:"primaryKey"`
	UserID            int64 `gorm:"uniqueIndex;not null"`
	Capacity          int `gorm:"not null"`
	StartLat          float64
	StartLng          float64
	StartAddress      string `gorm:"size:255"`
	AvailableTomorrow bool `gorm:"default:false"`
	DepartureTime     string `gorm:"size:5"` // "HH:MM"
}

// Passenger mirrors the Passengers table.
type Passenger struct {
	ID                  int64 `gorm:"primaryKey"`
	UserID              int64 `gorm:"index"`
	Name                string `gorm:"size:150"`
	Lat                 float64
	Lng                 float64
	Address             string `gorm:"size:255"`
	AvailableTomorrow   bool `gorm:"default:false"`
	EstimatedPickupTime string `gorm:"size:5"` // "HH:MM"
}

// Destination mirrors the Destination singleton table.
type Destination struct {
	ID                int64 `gorm:"primaryKey"`
	Name              string `gorm:"size:150"`
	Lat               float64
	Lng               float64
	Address            string `gorm:"size:255"`
	TargetArrivalTime string `gorm:"size:8"` // "HH:MM:SS"
}

// Route mirrors the Routes table: one row per (solutionDate, run).
type Route struct {
	ID            int64 `gorm:"primaryKey"`
	SolutionDate  string `gorm:"index;size:10;not null"` // "YYYY-MM-DD"
	GeneratedTime time.Time `gorm:"autoCreateTime"`
}

// RouteDetail mirrors the RouteDetails table: one row per vehicle in a Route.
type RouteDetail struct {
	ID            int64 `gorm:"primaryKey"`
	RouteID       int64 `gorm:"index;not null"`
	VehicleID     int64 `gorm:"not null"`
	TotalDistance float64
	TotalTime     float64
	DepartureTime string `gorm:"size:5"`
}

// PassengerAssignment mirrors the PassengerAssignments table: one row per
// stop within a RouteDetail.
type PassengerAssignment struct {
	ID                  int64 `gorm:"primaryKey"`
	RouteDetailID       int64 `gorm:"index;not null"`
	PassengerID         int64 `gorm:"not null"`
	StopOrder           int `gorm:"not null"` // 1-based
	EstimatedPickupTime string `gorm:"size:5"`
}

// RoutePathPoint mirrors the RoutePathPoints table: one row per waypoint in
// a RouteDetail's polyline/path.
type RoutePathPoint struct {
	ID            int64 `gorm:"primaryKey"`
	RouteDetailID int64 `gorm:"index;not null"`
	PointOrder    int `gorm:"not null"`
	Lat           float64
	Lng           float64
}

// Setting mirrors the Settings key/value table used for scheduling
// settings: booleans as "0"/"1", times as "HH:MM:SS".
type Setting struct {
	Name  string `gorm:"primaryKey;size:100"`
	Value string `gorm:"size:255"`
}

// SchedulingLogStatus mirrors model.RunStatus for the persisted log row.
type SchedulingLogStatus string

// SchedulingLog mirrors the SchedulingLog table: the append-only run log.
type SchedulingLog struct {
	ID                 int64 `gorm:"primaryKey"`
	RunTime            string `gorm:"size:19;not null"` // "YYYY-MM-DD HH:MM:SS"
	Status             string `gorm:"size:20;not null"`
	RoutesGenerated    int
	PassengersAssigned int
	ErrorMessage       string `gorm:"type:text"`
}

// Setting names used for scheduling settings (spec §6 Settings).
const (
	SettingEnabled       = "scheduler.enabled"
	SettingScheduledTime = "scheduler.scheduledTime"
)

func (Setting) TableName() string { return "settings" }
