package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"smartqueue/internal/auth"
	"smartqueue/internal/config"
	"smartqueue/internal/database"
	"smartqueue/internal/database/migrations"
	"smartqueue/internal/logger"
	"smartqueue/internal/models"
	"smartqueue/internal/queue"
	queue_db "smartqueue/internal/queue/db"
	"smartqueue/internal/utils"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before seeding")
	identifier := flag.String("admin", "demo", "identifier of the seeded admin")
	password := flag.String("password", "demo-password", "password of the seeded admin")
	tickets := flag.Int("tickets", 5, "tickets booked on the first event")
	flag.Parse()

	log := logger.New("")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	if *reset {
		log.Info("SEED", "Dropping tables...")
		if err := migrations.DropSchema(ctx, db); err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to drop schema: %v", err))
		}
	}
	if err := migrations.CreateSchema(ctx, db); err != nil {
		log.Fatal("SEED", fmt.Sprintf("Failed to create schema: %v", err))
	}

	now := time.Now().UTC()
	email := *identifier + "@example.com"
	request := &models.AdminAccessRequest{
		ID:           utils.GenerateID(),
		BusinessName: "Demo Clinic",
		OwnerName:    "Demo Owner",
		Email:        email,
		Phone:        "+1 555 0100",
		BusinessType: "healthcare",
		Status:       models.RequestStatusApproved,
		CreatedAt:    now,
		ReviewedAt:   &now,
		ReviewedBy:   cfg.Auth.SuperAdminIdentifier,
	}
	if _, err := db.NewInsert().Model(request).Exec(ctx); err != nil {
		log.Fatal("SEED", fmt.Sprintf("Failed to insert access request: %v", err))
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatal("SEED", err.Error())
	}
	account := &models.AdminAccount{
		ID:           utils.GenerateID(),
		Identifier:   *identifier,
		Email:        email,
		BusinessName: request.BusinessName,
		PasswordHash: hash,
		RequestID:    request.ID,
		CreatedAt:    now,
	}
	if _, err := db.NewInsert().Model(account).Exec(ctx); err != nil {
		log.Fatal("SEED", fmt.Sprintf("Failed to insert admin account (run with -reset?): %v", err))
	}
	log.Info("SEED", fmt.Sprintf("Admin %q ready", *identifier))

	engine := queue.NewEngine(&queue_db.DB{Bun: db}, queue.Options{
		Logger:                log,
		TicketCodeLength:      cfg.Queue.TicketCodeLength,
		DefaultServiceMinutes: cfg.Queue.DefaultServiceMinutes,
	})

	tomorrow := now.AddDate(0, 0, 1)
	samples := []models.CreateEventRequest{
		{Name: "Morning OPD", Description: "Outpatient consultations", Location: "Ground floor", EventDate: &tomorrow, MaxTokens: 50},
		{Name: "Pharmacy pickup", Location: "Counter 4", EventDate: &tomorrow, MaxTokens: 100},
	}
	var first *models.Event
	for _, req := range samples {
		event, err := engine.CreateEvent(ctx, account.ID, req)
		if err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to create event %q: %v", req.Name, err))
		}
		if first == nil {
			first = event
		}
	}

	for i := 0; i < *tickets; i++ {
		ticket, err := engine.BookTicket(ctx, first.ID, fmt.Sprintf("Guest %d", i+1))
		if err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to book ticket: %v", err))
		}
		log.Info("SEED", fmt.Sprintf("Booked %s at position %d", ticket.TicketCode, ticket.QueuePosition))
	}

	log.Info("SEED", "✅ Done.")
}
