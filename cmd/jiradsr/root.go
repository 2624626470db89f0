package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/forgeahead/jiradsr/internal/dsr"
	"github.com/forgeahead/jiradsr/internal/mail"
)

var (
	basePath    string
	configFile  string
	startDate   string
	endDate     string
	format      string
	attach      bool
	validate    bool
	interactive bool
	verbose     bool
	summaryTo   string
	from        string

	emailMethod string
	smtpServer  string
	smtpPort    int
	smtpUser    string
	smtpPasswd  string
	smtpTLS     bool
	gmailConfig string
	gmailToken  string
)

var rootCmd = &cobra.Command{
	Use:   "jiradsr",
	Short: "Generate daily status reports for Jira projects",
	Long: `jiradsr queries each configured Jira project for issue activity in a
time window (default: the previous calendar day per project timezone),
groups it per user and emails every contributor and their manager a
status digest.`,
	RunE: runReport,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cwd, _ := os.Getwd()

	rootCmd.Flags().StringVar(&basePath, "base-path", cwd, "Base path holding conf/, reports/ and logs/")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Single project config file under conf/ (default: all)")
	rootCmd.Flags().StringVarP(&startDate, "start", "s", "", "Window start, format \"2006-01-02 15:04\" (default: previous day 00:00)")
	rootCmd.Flags().StringVarP(&endDate, "end", "e", "", "Window end, exclusive (default: today 00:00)")
	rootCmd.Flags().StringVar(&format, "report", "html", "Report format: html, csv or xlsx")
	rootCmd.Flags().BoolVar(&attach, "attach", false, "Attach the rendered report to the email as well")
	rootCmd.Flags().BoolVar(&validate, "validate", false, "Validate project configs (including a tracker round-trip) and exit")
	rootCmd.Flags().BoolVar(&interactive, "interactive", false, "Mirror the log to stderr")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug level log output")
	rootCmd.Flags().StringVar(&summaryTo, "summary", "", "Email address for the run summary with the log attached")
	rootCmd.Flags().StringVar(&from, "from", "dsr-report@forgeahead.io", "From address for all report emails")

	rootCmd.Flags().StringVar(&emailMethod, "email-method", "smtp", "Delivery method: smtp or gmail")
	rootCmd.Flags().StringVar(&smtpServer, "smtp-server", "localhost", "SMTP relay host")
	rootCmd.Flags().IntVar(&smtpPort, "smtp-port", 25, "SMTP relay port")
	rootCmd.Flags().StringVar(&smtpUser, "smtp-user", "", "SMTP auth user (or SMTP_USER env)")
	rootCmd.Flags().StringVar(&smtpPasswd, "smtp-passwd", "", "SMTP auth password (or SMTP_PASSWD env)")
	rootCmd.Flags().BoolVar(&smtpTLS, "smtp-tls", false, "Require STARTTLS on the SMTP connection")
	rootCmd.Flags().StringVar(&gmailConfig, "gmail-config", "client_secret_gmail_api.json", "OAuth client secret file under conf/")
	rootCmd.Flags().StringVar(&gmailToken, "gmail-token", "gmail_token.json", "Cached OAuth token file under conf/")
}

func runReport(cmd *cobra.Command, args []string) error {
	if (startDate == "") != (endDate == "") {
		return fmt.Errorf("--start and --end must be given together")
	}

	runID := uuid.NewString()[:8]
	logger, logPath, closeLog, err := setupLogger(basePath, runID, verbose, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	mailer, err := buildMailer()
	if err != nil {
		return err
	}

	app, err := dsr.New(dsr.Options{
		BasePath:   basePath,
		ConfigFile: configFile,
		StartSpec:  startDate,
		EndSpec:    endDate,
		Format:     format,
		Attach:     attach,
		Validate:   validate,
		From:       from,
		SummaryTo:  summaryTo,
		RunID:      runID,
		LogPath:    logPath,
	}, logger, mailer)
	if err != nil {
		return err
	}

	bar := newSpinner("Processing projects")
	defer finishBar(bar)

	started := time.Now()
	logger.Info("run starting", "run_id", runID, "base_path", basePath)
	if err := app.Run(context.Background()); err != nil {
		logger.Error("run aborted", "error", err)
		return err
	}
	logger.Info("run finished", "run_id", runID, "elapsed", time.Since(started).Round(time.Second).String())

	finishBar(bar)
	printOutcomes(app.Summary())
	return nil
}

func buildMailer() (mail.Mailer, error) {
	switch emailMethod {
	case "smtp":
		user := smtpUser
		if user == "" {
			user = os.Getenv("SMTP_USER")
		}
		passwd := smtpPasswd
		if passwd == "" {
			passwd = os.Getenv("SMTP_PASSWD")
		}
		return &mail.SMTPMailer{
			Host:     smtpServer,
			Port:     smtpPort,
			User:     user,
			Password: passwd,
			TLS:      smtpTLS,
		}, nil
	case "gmail":
		confDir := filepath.Join(basePath, "conf")
		return &mail.GmailMailer{
			SecretFile: filepath.Join(confDir, gmailConfig),
			TokenFile:  filepath.Join(confDir, gmailToken),
		}, nil
	default:
		return nil, fmt.Errorf("unknown email method %q (want smtp or gmail)", emailMethod)
	}
}

func printOutcomes(summary *dsr.Summary) {
	entries := summary.Entries()
	if len(entries) == 0 {
		fmt.Println("\nNo projects processed")
		return
	}
	fmt.Printf("\nRun outcomes:\n")
	for _, e := range entries {
		if e.Detail != "" {
			fmt.Printf("  %-24s %s (%s)\n", e.Project, e.Outcome, e.Detail)
		} else {
			fmt.Printf("  %-24s %s\n", e.Project, e.Outcome)
		}
	}
}
