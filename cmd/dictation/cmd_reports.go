package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dictation/internal/models"
	"dictation/internal/repository"
)

var (
	reportsStatus string
	reportsLimit  int
)

// reportsCmd groups feedback report triage
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Triage feedback reports",
	Long: `Triage the feedback reports learners submitted.

Available subcommands:
  list    - List reports, newest first
  show    - Print one report in full
  resolve - Mark a report as resolved`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one report in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

var reportsResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a report as resolved",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsResolve,
}

func init() {
	reportsListCmd.Flags().StringVar(&reportsStatus, "status", string(models.ReportOpen), "Only reports with this status (OPEN, RESOLVED, or ALL)")
	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 50, "Maximum number of reports")
}

func runReportsList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	status := models.ReportStatus(strings.ToUpper(reportsStatus))
	switch status {
	case "ALL":
		status = ""
	case models.ReportOpen, models.ReportResolved:
	default:
		return fmt.Errorf("invalid --status %q", reportsStatus)
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := repository.NewReportRepository(db).List(ctx, status, reportsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tPRIORITY\tTYPE\tLANGUAGE\tSUBJECT")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Status, r.Priority, r.ProblemType, r.Language, r.Subject)
	}
	return w.Flush()
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := repository.NewReportRepository(db).GetByID(ctx, args[0])
	if errors.Is(err, repository.ErrReportNotFound) {
		return fmt.Errorf("report %s not found", args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", r.ID)
	fmt.Fprintf(out, "Created:   %s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Status:    %s\n", r.Status)
	fmt.Fprintf(out, "Priority:  %s\n", r.Priority)
	fmt.Fprintf(out, "Type:      %s\n", r.ProblemType)
	fmt.Fprintf(out, "Language:  %s\n", r.Language)
	if r.ContactEmail != "" {
		fmt.Fprintf(out, "Contact:   %s\n", r.ContactEmail)
	}
	for _, a := range r.Attachments {
		fmt.Fprintf(out, "Attached:  %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.Size)
	}
	fmt.Fprintf(out, "Subject:   %s\n\n%s\n", r.Subject, r.Message)
	return nil
}

func runReportsResolve(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	err = repository.NewReportRepository(db).UpdateStatus(ctx, args[0], models.ReportResolved)
	if errors.Is(err, repository.ErrReportNotFound) {
		return fmt.Errorf("report %s not found", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report %s resolved\n", args[0])
	return nil
}
