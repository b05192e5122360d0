// Command backfill runs one reconciliation pass directly against the
// database, for operators who need to seed or repair the meetings table
// without going through the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/internal/repository"
	"github.com/teamcal/teamcal-api/internal/service"
	"github.com/teamcal/teamcal-api/pkg/config"
	"github.com/teamcal/teamcal-api/pkg/database"
)

func main() {
	var (
		policy  string
		confirm bool
		timeout time.Duration
	)

	flag.StringVar(&policy, "policy", string(recurrence.PolicyAddMissing), "reconciliation policy: add_missing or replace_all")
	flag.BoolVar(&confirm, "confirm", false, "required for replace_all; acknowledges that all notes are discarded")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	meetingRepo := repository.NewMeetingRepository(db)
	scheduleRepo := repository.NewScheduleConfigRepository(db)
	userRepo := repository.NewUserRepository(db)

	holidays := recurrence.NewHolidayCalendar()
	engine := recurrence.NewEngine(holidays)
	validate := service.NewValidator()

	scheduleSvc := service.NewScheduleService(scheduleRepo, meetingRepo, userRepo, nil, validate, logr, cfg.Schedule)
	backfillSvc := service.NewBackfillService(meetingRepo, scheduleSvc, userRepo, engine, nil, nil, logr, cfg.Schedule)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := backfillSvc.Run(ctx, service.BackfillRequest{
		Policy:  recurrence.Policy(policy),
		Confirm: confirm,
	}, "")
	if err != nil {
		log.Fatalf("backfill failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}
