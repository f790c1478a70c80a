package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/ridematch/scheduler/pkg/errors"

	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

// Store is the persistence contract the Scheduler and the Admin API rely on
// (spec §4.4); the Solver and RoutingEngine never use it. Operation names mirror the spec's
// illustrative contract.
type Store interface {
	GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error)
	GetDestination(ctx context.Context) (model.Destination, error)
	GetAvailableVehicles(ctx context.Context) ([]model.Vehicle, error)
	GetAvailablePassengers(ctx context.Context) ([]model.Passenger, error)
	SaveSolution(ctx context.Context, solution *model.Solution, solutionDate string) (routeID int64, err error)
	LogSchedulingRun(ctx context.Context, entry model.RunLogEntry) error
	RecentRuns(ctx context.Context, limit int) ([]model.RunLogEntry, error)
	UpdateSchedulingSettings(ctx context.Context, settings model.SchedulingSettings) error
	Close() error
}

// GormStore implements Store against Postgres via gorm, grounded on the
// teacher's repository.BaseRepository transactional pattern
// (db.WithContext(ctx).Transaction(...)).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open *gorm.DB as a Store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates/updates the schema. Used only by tests and seed tooling —
// the request path never calls AutoMigrate (schema migration UX is out of
// scope, spec §1 Non-goals).
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Vehicle{},
		&Passenger{},
		&Destination{},
		&Route{},
		&RouteDetail{},
		&PassengerAssignment{},
		&RoutePathPoint{},
		&Setting{},
		&SchedulingLog{},
	)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error) {
	var enabledRow, timeRow Setting
	if err := s.db.WithContext(ctx).First(&enabledRow, "name = ?", SettingEnabled).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.SchedulingSettings{}, nil
		}
		return model.SchedulingSettings{}, apperrors.NewStoreTransientError("failed to read scheduler.enabled").WithInternal(err)
	}
	if err := s.db.WithContext(ctx).First(&timeRow, "name = ?", SettingScheduledTime).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.SchedulingSettings{Enabled: enabledRow.Value == "1"}, nil
		}
		return model.SchedulingSettings{}, apperrors.NewStoreTransientError("failed to read scheduler.scheduledTime").WithInternal(err)
	}

	scheduledTime, err := parseHHMMSS(timeRow.Value)
	if err != nil {
		return model.SchedulingSettings{}, apperrors.NewStoreTransientError("malformed scheduledTime setting").WithInternal(err)
	}

	return model.SchedulingSettings{
		Enabled:       enabledRow.Value == "1",
		ScheduledTime: scheduledTime,
	}, nil
}

func (s *GormStore) UpdateSchedulingSettings(ctx context.Context, settings model.SchedulingSettings) error {
	enabledValue := "0"
	if settings.Enabled {
		enabledValue = "1"
	}
	rows := []Setting{
		{Name: SettingEnabled, Value: enabledValue},
		{Name: SettingScheduledTime, Value: formatHHMMSS(settings.ScheduledTime)},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetDestination(ctx context.Context) (model.Destination, error) {
	var d Destination
	if err := s.db.WithContext(ctx).First(&d).Error; err != nil {
		return model.Destination{}, apperrors.NewStoreTransientError("failed to read destination").WithInternal(err)
	}
	target, err := parseHHMMSS(d.TargetArrivalTime)
	if err != nil {
		return model.Destination{}, apperrors.NewStoreTransientError("malformed destination targetArrivalTime").WithInternal(err)
	}
	return model.Destination{
		Name:              d.Name,
		Location:          geo.Coordinate{Lat: d.Lat, Lng: d.Lng},
		TargetArrivalTime: target,
	}, nil
}

func (s *GormStore) GetAvailableVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var rows []Vehicle
	if err := s.db.WithContext(ctx).Where("available_tomorrow = ?", true).Find(&rows).Error; err != nil {
		return nil, apperrors.NewStoreTransientError("failed to list available vehicles").WithInternal(err)
	}
	vehicles := make([]model.Vehicle, len(rows))
	for i, r := range rows {
		vehicles[i] = model.Vehicle{
			ID:                r.ID,
			Capacity:          r.Capacity,
			Start:             geo.Coordinate{Lat: r.StartLat, Lng: r.StartLng},
			AvailableTomorrow: r.AvailableTomorrow,
			DepartureTime:     r.DepartureTime,
		}
	}
	return vehicles, nil
}

func (s *GormStore) GetAvailablePassengers(ctx context.Context) ([]model.Passenger, error) {
	var rows []Passenger
	if err := s.db.WithContext(ctx).Where("available_tomorrow = ?", true).Find(&rows).Error; err != nil {
		return nil, apperrors.NewStoreTransientError("failed to list available passengers").WithInternal(err)
	}
	passengers := make([]model.Passenger, len(rows))
	for i, r := range rows {
		passengers[i] = model.Passenger{
			ID:                  r.ID,
			Name:                r.Name,
			Location:            geo.Coordinate{Lat: r.Lat, Lng: r.Lng},
			AvailableTomorrow:   r.AvailableTomorrow,
			EstimatedPickupTime: r.EstimatedPickupTime,
		}
	}
	return passengers, nil
}

// SaveSolution persists a Solution atomically: a Route row, one RouteDetail
// row per used vehicle, its PassengerAssignment and RoutePathPoint rows,
// and Vehicle/Passenger time-column updates — all inside a single
// transaction (spec §4.4 Atomicity, §8 property 7). Any error rolls back
// the whole write.
func (s *GormStore) SaveSolution(ctx context.Context, solution *model.Solution, solutionDate string) (int64, error) {
	var routeID int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		route := Route{SolutionDate: solutionDate, GeneratedTime: time.Now()}
		if err := tx.Create(&route).Error; err != nil {
			return fmt.Errorf("insert route: %w", err)
		}
		routeID = route.ID

		for _, v := range solution.Vehicles {
			if len(v.AssignedPassengers) == 0 {
				continue
			}

			detail := RouteDetail{
				RouteID:       routeID,
				VehicleID:     v.ID,
				TotalDistance: v.TotalDistanceKM,
				TotalTime:     v.TotalTimeMinutes,
				DepartureTime: v.DepartureTime,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return fmt.Errorf("insert route detail for vehicle %d: %w", v.ID, err)
			}

			for i, p := range v.AssignedPassengers {
				assignment := PassengerAssignment{
					RouteDetailID:       detail.ID,
					PassengerID:         p.ID,
					StopOrder:           i + 1,
					EstimatedPickupTime: p.EstimatedPickupTime,
				}
				if err := tx.Create(&assignment).Error; err != nil {
					return fmt.Errorf("insert passenger assignment for passenger %d: %w", p.ID, err)
				}

				if err := tx.Model(&Passenger{}).Where("id = ?", p.ID).
					Update("estimated_pickup_time", p.EstimatedPickupTime).Error; err != nil {
					return fmt.Errorf("update passenger %d pickup time: %w", p.ID, err)
				}
			}

			for i, pt := range v.RoutePath {
				point := RoutePathPoint{
					RouteDetailID: detail.ID,
					PointOrder:    i + 1,
					Lat:           pt.Lat,
					Lng:           pt.Lng,
				}
				if err := tx.Create(&point).Error; err != nil {
					return fmt.Errorf("insert route path point for vehicle %d: %w", v.ID, err)
				}
			}

			if err := tx.Model(&Vehicle{}).Where("id = ?", v.ID).
				Update("departure_time", v.DepartureTime).Error; err != nil {
				return fmt.Errorf("update vehicle %d departure time: %w", v.ID, err)
			}
		}

		return nil
	})

	if err != nil {
		return 0, apperrors.NewStoreTransientError("failed to save solution").WithInternal(err)
	}
	return routeID, nil
}

func (s *GormStore) LogSchedulingRun(ctx context.Context, entry model.RunLogEntry) error {
	row := SchedulingLog{
		RunTime:            entry.RunTime.Format("2006-01-02 15:04:05"),
		Status:             string(entry.Status),
		RoutesGenerated:    entry.RoutesGenerated,
		PassengersAssigned: entry.PassengersAssigned,
		ErrorMessage:       entry.Message,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert scheduling log: %w", err)
	}
	return nil
}

func (s *GormStore) RecentRuns(ctx context.Context, limit int) ([]model.RunLogEntry, error) {
	var rows []SchedulingLog
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, apperrors.NewStoreTransientError("failed to list recent runs").WithInternal(err)
	}
	entries := make([]model.RunLogEntry, len(rows))
	for i, r := range rows {
		runTime, _ := time.ParseInLocation("2006-01-02 15:04:05", r.RunTime, time.Local)
		entries[i] = model.RunLogEntry{
			RunTime:            runTime,
			Status:             model.RunStatus(r.Status),
			RoutesGenerated:    r.RoutesGenerated,
			PassengersAssigned: r.PassengersAssigned,
			Message:            r.ErrorMessage,
		}
	}
	return entries, nil
}

func parseHHMMSS(s string) (time.Duration, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, err
		}
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

func formatHHMMSS(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
