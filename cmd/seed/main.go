package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/consultas-service/internal/appointment"
	"github.com/hackgods/consultas-service/internal/config"
	"github.com/hackgods/consultas-service/internal/db"
	"github.com/hackgods/consultas-service/internal/logger"
)

var kinds = []string{
	"consulta",
	"retorno",
	"exame",
	"urgência",
	"telemedicina",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("consultas-seed", cfg.LogLevel)

	count := 50
	if v := os.Getenv("SEED_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Error("invalid SEED_COUNT", "value", v)
			os.Exit(1)
		}
		count = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", "err", err)
		os.Exit(1)
	}

	if err := seedAppointments(ctx, repo, count, log); err != nil {
		log.Error("seed appointments", "err", err)
		os.Exit(1)
	}
	log.Info("seed complete", "count", count)
}

func seedAppointments(ctx context.Context, repo appointment.Repository, count int, log *slog.Logger) error {
	now := time.Now()
	for i := 0; i < count; i++ {
		a := fakeAppointment(now)
		if _, err := repo.Insert(ctx, appointment.DraftOf(a)); err != nil {
			return err
		}
		if (i+1)%10 == 0 {
			log.Info("appointments seeded", "done", i+1, "total", count)
		}
	}
	return nil
}

func fakeAppointment(now time.Time) appointment.Appointment {
	birth := gofakeit.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-1, 0, 0))
	day := gofakeit.DateRange(now, now.AddDate(0, 3, 0))
	return appointment.Appointment{
		Name:            gofakeit.Name(),
		BirthDate:       birth.Format("2006-01-02"),
		AppointmentDate: day.Format("2006-01-02"),
		Time:            fmt.Sprintf("%02d:%02d", gofakeit.Number(8, 17), gofakeit.RandomInt([]int{0, 15, 30, 45})),
		Kind:            gofakeit.RandomString(kinds),
	}
}
