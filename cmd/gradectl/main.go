package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/app"
	"github.com/noah-isme/score-analytics-api/internal/models"
	"github.com/noah-isme/score-analytics-api/internal/service"
	"github.com/noah-isme/score-analytics-api/pkg/config"
	"github.com/noah-isme/score-analytics-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	subject string
	format  string
	output  string
	role    string
	email   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "gradectl",
		Short:         "Score analytics from the command line",
		Long:          "gradectl computes student and class reports, imports score workbooks and mints API tokens using the server's configuration.",
		SilenceUsage:  true,
	}

	studentCmd := &cobra.Command{
		Use:   "student-report [student id]",
		Short: "Print a student's performance report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				subject, err := parseSubjectFlag(opts.subject)
				if err != nil {
					return err
				}
				report, _, err := c.Analytics.StudentReport(cmd.Context(), args[0], subject)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	classCmd := &cobra.Command{
		Use:   "class-report [class id]",
		Short: "Print a class performance report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				subject, err := parseSubjectFlag(opts.subject)
				if err != nil {
					return err
				}
				report, _, err := c.Analytics.ClassReport(cmd.Context(), args[0], subject)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	for _, cmd := range []*cobra.Command{studentCmd, classCmd} {
		cmd.Flags().StringVarP(&opts.subject, "subject", "s", "", "Restrict to one subject (CHINESE, MATH, ENGLISH)")
	}

	exportCmd := &cobra.Command{
		Use:   "export [class id]",
		Short: "Render a class report to csv, pdf or xlsx",
		Long: `Render a class report to a file.

Examples:
  gradectl export 3f1c... --format xlsx -o class.xlsx
  gradectl export 3f1c... --subject MATH > rankings.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := service.ParseExportFormat(opts.format)
			if err != nil {
				return err
			}
			subject, err := parseSubjectFlag(opts.subject)
			if err != nil {
				return err
			}
			return withContainer(cmd, func(c *app.Container) error {
				file, err := c.Exports.ExportClassReport(cmd.Context(), args[0], subject, format)
				if err != nil {
					return err
				}
				if opts.output == "" {
					_, err = cmd.OutOrStdout().Write(file.Data)
					return err
				}
				if err := os.WriteFile(opts.output, file.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", opts.output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", opts.output, len(file.Data))
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&opts.format, "format", "f", "csv", "Output format (csv, pdf, xlsx)")
	exportCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVarP(&opts.subject, "subject", "s", "", "Restrict to one subject")

	importCmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Import scores from an XLSX workbook",
		Long: `Import scores from the first sheet of a workbook.

The header row must name student_name, class_name, exam_name, subject and score
columns; exam_date is optional. Rows are imported independently and failures are
reported with their 1-based row number.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()
			return withContainer(cmd, func(c *app.Container) error {
				result, err := c.Imports.ImportXLSX(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows, %d failed\n", result.Success, result.Failed)
				for _, rowErr := range result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  row %d: %s\n", rowErr.Row, rowErr.Message)
				}
				return nil
			})
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token [user id]",
		Short: "Mint an API access token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			role := models.UserRole(strings.ToUpper(opts.role))
			switch role {
			case models.RoleAdmin, models.RoleTeacher, models.RoleViewer:
			default:
				return fmt.Errorf("unknown role %q", opts.role)
			}
			userID := ""
			if len(args) == 1 {
				userID = args[0]
			}
			tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer, TTL: cfg.Auth.TokenTTL})
			token, expiresAt, err := tokens.IssueToken(userID, opts.email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	tokenCmd.Flags().StringVarP(&opts.role, "role", "r", string(models.RoleViewer), "Role claim (ADMIN, TEACHER, VIEWER)")
	tokenCmd.Flags().StringVarP(&opts.email, "email", "e", "", "Email claim")

	rootCmd.AddCommand(studentCmd, classCmd, exportCmd, importCmd, tokenCmd)
	return rootCmd
}

// withContainer loads configuration, connects and runs fn. Reports are
// computed directly; the warmup pool is never started.
func withContainer(cmd *cobra.Command, fn func(*app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	c, err := app.New(cmd.Context(), cfg, logr.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func parseSubjectFlag(raw string) (*models.Subject, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	subject, ok := models.ParseSubject(raw)
	if !ok {
		return nil, fmt.Errorf("unknown subject %q", raw)
	}
	return &subject, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
