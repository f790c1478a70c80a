package main

import (
	"flag"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ridematch/scheduler/internal/common/config"
	"github.com/ridematch/scheduler/internal/common/database"
	"github.com/ridematch/scheduler/internal/store"
)

func main() {
	clear := flag.Bool("clear", false, "Clear all seed data before seeding")
	help := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	printBanner()

	log.Println("loading configuration...")
	cfg := config.Load()

	log.Println("connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	log.Println("migrating schema...")
	if err := store.Migrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	if *clear {
		log.Println("clearing existing data...")
		if err := clearAll(db); err != nil {
			log.Fatalf("failed to clear data: %v", err)
		}
	}

	log.Println("seeding sample roster...")
	if err := seedRoster(db); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	log.Println("seeding completed successfully")
	showQuickStart()
}

func clearAll(db *gorm.DB) error {
	tables := []interface{}{
		&store.RoutePathPoint{}, &store.PassengerAssignment{}, &store.RouteDetail{}, &store.Route{},
		&store.SchedulingLog{}, &store.Setting{}, &store.Passenger{}, &store.Vehicle{}, &store.Destination{}, &store.User{},
	}
	for _, table := range tables {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedRoster(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		users := []store.User{
			{ID: 1, Username: "driver.1", PasswordHash: "seed", UserType: store.UserTypeDriver, Name: "Ayala Ben-David"},
			{ID: 2, Username: "driver.2", PasswordHash: "seed", UserType: store.UserTypeDriver, Name: "Noa Cohen"},
			{ID: 3, Username: "passenger.1", PasswordHash: "seed", UserType: store.UserTypePassenger, Name: "Itai Mizrahi"},
			{ID: 4, Username: "passenger.2", PasswordHash: "seed", UserType: store.UserTypePassenger, Name: "Tamar Shapira"},
			{ID: 5, Username: "passenger.3", PasswordHash: "seed", UserType: store.UserTypePassenger, Name: "Eden Azulay"},
		}
		for _, u := range users {
			if err := tx.Save(&u).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.Username, err)
			}
		}

		if err := tx.Save(&store.Destination{
			ID: 1, Name: "Herzliya Office", Lat: 32.1663, Lng: 34.8434, TargetArrivalTime: "08:00:00",
		}).Error; err != nil {
			return fmt.Errorf("seed destination: %w", err)
		}

		vehicles := []store.Vehicle{
			{ID: 1, UserID: 1, Capacity: 4, StartLat: 32.0809, StartLng: 34.7806, AvailableTomorrow: true},
			{ID: 2, UserID: 2, Capacity: 3, StartLat: 32.0705, StartLng: 34.7908, AvailableTomorrow: true},
		}
		for _, v := range vehicles {
			if err := tx.Save(&v).Error; err != nil {
				return fmt.Errorf("seed vehicle %d: %w", v.ID, err)
			}
		}

		passengers := []store.Passenger{
			{ID: 1, UserID: 3, Name: "Itai Mizrahi", Lat: 32.0753, Lng: 34.7818, AvailableTomorrow: true},
			{ID: 2, UserID: 4, Name: "Tamar Shapira", Lat: 32.0667, Lng: 34.7764, AvailableTomorrow: true},
			{ID: 3, UserID: 5, Name: "Eden Azulay", Lat: 32.0892, Lng: 34.7749, AvailableTomorrow: true},
		}
		for _, p := range passengers {
			if err := tx.Save(&p).Error; err != nil {
				return fmt.Errorf("seed passenger %d: %w", p.ID, err)
			}
		}

		settings := []store.Setting{
			{Name: store.SettingEnabled, Value: "0"},
			{Name: store.SettingScheduledTime, Value: "06:00:00"},
		}
		for _, s := range settings {
			if err := tx.Save(&s).Error; err != nil {
				return fmt.Errorf("seed setting %s: %w", s.Name, err)
			}
		}

		return nil
	})
}

func printBanner() {
	fmt.Println(`
RideMatch Scheduler — database seeder
`)
}

func showHelp() {
	fmt.Println(`
RideMatch Scheduler database seeder

Usage:
  go run cmd/seed/main.go [flags]

Flags:
  --clear   Clear all existing seed data before seeding
  --help    Show this help message

Seed data includes a destination, a handful of vehicles, a handful of
passengers, and default scheduling settings (disabled, scheduled for
06:00 local), so the scheduler can be exercised end-to-end against a
local Postgres instance.
`)
}

func showQuickStart() {
	fmt.Println(`
Quick start:
  go run cmd/server/main.go

  GET  /api/v1/destination
  GET  /api/v1/vehicles
  GET  /api/v1/passengers
  PUT  /api/v1/settings   (Authorization: Bearer <ADMIN_TOKEN>)
  POST /api/v1/run-now    (Authorization: Bearer <ADMIN_TOKEN>)
`)
}
