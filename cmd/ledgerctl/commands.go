package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"bizrent_ledger/internal/app"
	"bizrent_ledger/internal/config"
	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
	"bizrent_ledger/internal/services"
	"bizrent_ledger/internal/tasks"
)

// dueLayout is accepted besides RFC3339, in local time
const dueLayout = "2006-01-02 15:04"

func parseDue(raw string, now time.Time) (time.Time, error) {
	if raw == "" || raw == "now" {
		return now, nil
	}
	if due, err := time.Parse(time.RFC3339, raw); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation(dueLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: use %q (local) or RFC3339", raw, dueLayout)
	}
	return due, nil
}

func openDB() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return services.InitDB(cfg)
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return services.AutoMigrate(db)
		},
	}
}

func ScheduleCmd() *cobra.Command {
	var (
		taskName   string
		arguments  string
		due        string
		taskType   string
		recurring  string
		maxAttempt int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Add a scheduled task for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := tasks.DefaultRegistry().Get(taskName); !ok {
				return fmt.Errorf("unknown task %q", taskName)
			}

			var taskArgs map[string]interface{}
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &taskArgs); err != nil {
					return fmt.Errorf("invalid JSON arguments: %w", err)
				}
			}

			dueAt, err := parseDue(due, time.Now())
			if err != nil {
				return err
			}

			var rule *string
			if recurring != "" {
				rule = &recurring
			}

			task, err := tasks.BuildScheduledTask(taskName, taskArgs, dueAt, rule, models.ScheduledTaskType(taskType), maxAttempt)
			if err != nil {
				return err
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			if err := db.Create(task).Error; err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s due %s (%s)\n", task.ID, task.TaskName, task.Due.Format(time.RFC3339), task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskName, "task", "", "Name of the task")
	cmd.Flags().StringVar(&arguments, "args", "", "JSON arguments for the task")
	cmd.Flags().StringVar(&due, "due", "now", "Due date, \"2006-01-02 15:04\" or RFC3339")
	cmd.Flags().StringVar(&taskType, "type", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	cmd.Flags().StringVar(&recurring, "rrule", "", "Recurrence rule for recurring tasks")
	cmd.Flags().IntVar(&maxAttempt, "max-attempt", 3, "Attempts per run")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark pending invoices past their due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Ledger.SweepOverdue(cmd.Context(), identity.System())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func GenerateCmd() *cobra.Command {
	var (
		landlordID uint
		month      int
		year       int
		schedule   bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate monthly invoices for a landlord's occupied units",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var landlord models.User
			if err := a.DB.First(&landlord, landlordID).Error; err != nil {
				return fmt.Errorf("landlord %d: %w", landlordID, err)
			}
			session, err := identity.ForUser(&landlord)
			if err != nil {
				return err
			}

			if schedule {
				created, err := tasks.GenerateInvoicesTask.Ensure(a.DB, landlordID, nextMonthStart(time.Now()))
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Scheduled monthly generation for landlord %d\n", landlordID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Monthly generation already scheduled for landlord %d\n", landlordID)
				}
				return nil
			}

			now := time.Now()
			if month == 0 {
				month = int(now.Month())
			}
			if year == 0 {
				year = now.Year()
			}

			report, err := a.Ledger.GenerateInvoices(cmd.Context(), session, ledger.GenerateRequest{
				Month: fmt.Sprintf("%02d", month),
				Year:  fmt.Sprintf("%04d", year),
			})
			if errors.Is(err, ledger.ErrEmptyBatch) {
				fmt.Fprintln(cmd.OutOrStdout(), "No occupied units to bill.")
				return nil
			}
			if report != nil {
				if perr := printJSON(cmd, report); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().UintVar(&landlordID, "landlord", 0, "Landlord user ID")
	cmd.Flags().IntVar(&month, "month", 0, "Billing month (default: current)")
	cmd.Flags().IntVar(&year, "year", 0, "Billing year (default: current)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Schedule recurring monthly generation instead of running now")
	_ = cmd.MarkFlagRequired("landlord")

	return cmd
}

func nextMonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

func TokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
			if err != nil {
				return err
			}
			db, err := services.InitDB(cfg)
			if err != nil {
				return err
			}

			var user models.User
			if err := db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
				return fmt.Errorf("user %s: %w", email, err)
			}
			token, expires, err := tokens.Issue(&user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func NotifyTestCmd() *cobra.Command {
	var (
		phone string
		email string
		msg   string
	)

	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message through WhatsApp or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" && email == "" {
				return errors.New("provide --phone or --email")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if phone != "" {
				waha := services.NewWahaService(cfg)
				if err := waha.SendMessage(cmd.Context(), phone, msg); err != nil {
					return fmt.Errorf("whatsapp: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "WhatsApp message sent to %s\n", services.NormalizeChatID(phone, cfg.WahaCountryCode))
			}
			if email != "" {
				if err := services.NewEmailService(cfg).SendEmail([]string{email}, "Test message", msg); err != nil {
					return fmt.Errorf("email: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Email sent to %s\n", email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number, e.g. 628123456789")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&msg, "msg", "Test message from ledgerctl", "Message body")

	return cmd
}
