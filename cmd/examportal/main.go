package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examportal/internal/auth"
	"github.com/pavelanni/examportal/internal/handler"
	appI18n "github.com/pavelanni/examportal/internal/i18n"
	"github.com/pavelanni/examportal/internal/llm"
	"github.com/pavelanni/examportal/internal/model"
	"github.com/pavelanni/examportal/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examportal",
		Short: "Online exam management server",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), hashPasswordCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "examportal.db", "SQLite path or Postgres DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":5000", "HTTP listen address")
	f.String("jwt-secret", "", "HMAC secret for bearer tokens (or set EXAMPORTAL_JWT_SECRET)")
	f.Duration("token-ttl", 8*time.Hour, "Bearer token lifetime")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the question generator")
	f.String("llm-model", "gpt-4o-mini", "Model used for question generation")
	f.Bool("llm-ping", false, "Check the LLM endpoint at startup")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.StringP("lang", "l", "en", "Default message language (en, ur)")
	f.String("admin-email", "admin@example.com", "Email of the seeded admin account")
	f.String("admin-password", "", "Initial admin password (or set EXAMPORTAL_ADMIN_PASSWORD)")
	f.String("question-policy", string(model.PolicyReject), "Answers to questions outside the exam (reject, score)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam with its results as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print a bcrypt hash for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examportal")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examportal")
	v.AddConfigPath("/etc/examportal")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper, opts ...store.Option) (*store.Store, error) {
	db, err := store.New(ctx, store.Driver(strings.ToLower(v.GetString("db-driver"))), v.GetString("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func parsePolicy(s string) (model.QuestionPolicy, error) {
	switch p := model.QuestionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case model.PolicyReject, model.PolicyScore:
		return p, nil
	}
	return "", fmt.Errorf("invalid question-policy %q (want reject or score)", s)
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := parsePolicy(v.GetString("question-policy"))
	if err != nil {
		return err
	}
	db, err := openStore(ctx, v, store.WithQuestionPolicy(policy))
	if err != nil {
		return err
	}
	defer db.Close()

	// Seed the first admin when the database is empty.
	if err := seedAdmin(ctx, db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	tokens, err := auth.NewService(v.GetString("jwt-secret"), v.GetDuration("token-ttl"))
	if err != nil {
		return fmt.Errorf("token service: %w (set --jwt-secret or EXAMPORTAL_JWT_SECRET)", err)
	}

	lang := v.GetString("lang")
	catalog, err := appI18n.Load(lang)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	slog.Info("loaded message catalog", "default", lang, "languages", catalog.Languages())

	var gen handler.QuestionGenerator
	if v.GetString("llm-key") != "" {
		client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
		if v.GetBool("llm-ping") {
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("LLM health check: %w", err)
			}
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
		gen = client
	} else {
		slog.Warn("no llm-key configured, question generation disabled")
	}

	h := handler.New(db, tokens, gen)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
		MaxAge:         300,
	}))
	r.Use(catalog.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"lang", lang,
			"question_policy", policy,
			"llm_enabled", gen != nil,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportExam(ctx, v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export exam: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeExport(w, export)
}

func writeExport(w io.Writer, export model.ExamExport) error {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

func seedAdmin(ctx context.Context, db *store.Store, email, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMPORTAL_ADMIN_PASSWORD env var")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	id, err := db.CreateUser(ctx, model.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "user_id", id, "email", email)
	return nil
}
