// dashboard-cli — консольный клиент Dashboard Module.
//
// Команды:
//
//	login    — вход через Cognito hosted UI (authorization code flow)
//	profile  — профиль вызывающего (email, роль, device_id)
//	data     — последние показания (/api/data)
//	history  — исторические показания (/api/history)
//
// Конфигурация через переменные окружения:
//
//	DASH_API_URL         — базовый URL Dashboard Module (по умолчанию http://localhost:8040)
//	DASH_COGNITO_DOMAIN  — домен Cognito hosted UI (обязателен для login)
//	DASH_CLIENT_ID       — app client id (обязателен для login)
//	DASH_REDIRECT_URI    — callback URL (по умолчанию http://localhost:8040/callback)
//
// Токен сохраняется в ~/.dashboard-cli/token после login и
// используется остальными командами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bigkaa/enerstat/dashboard-module/internal/dashclient"
)

const (
	defaultAPIURL      = "http://localhost:8040"
	defaultRedirectURI = "http://localhost:8040/callback"
	requestTimeout     = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("не указана команда")
	}

	logLevel := slog.LevelWarn
	if os.Getenv("DASH_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	client := dashclient.New(
		getEnvDefault("DASH_API_URL", defaultAPIURL),
		os.Getenv("DASH_COGNITO_DOMAIN"),
		os.Getenv("DASH_CLIENT_ID"),
		getEnvDefault("DASH_REDIRECT_URI", defaultRedirectURI),
		requestTimeout,
		logger,
	)

	ctx := context.Background()

	switch os.Args[1] {
	case "login":
		return cmdLogin(ctx, client, os.Args[2:])
	case "profile":
		return cmdProfile(ctx, client)
	case "data":
		return cmdData(ctx, client)
	case "history":
		return cmdHistory(ctx, client, os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("неизвестная команда: %s", os.Args[1])
	}
}

// cmdLogin печатает URL входа Cognito и обменивает полученный
// authorization code на токены. Код передаётся флагом --code;
// без флага команда только печатает URL.
func cmdLogin(ctx context.Context, client *dashclient.Client, args []string) error {
	var code string

	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	flagSet.StringVar(&code, "code", "", "authorization code со страницы callback")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if os.Getenv("DASH_COGNITO_DOMAIN") == "" || os.Getenv("DASH_CLIENT_ID") == "" {
		return fmt.Errorf("для login требуются DASH_COGNITO_DOMAIN и DASH_CLIENT_ID")
	}

	if code == "" {
		fmt.Println("Откройте в браузере страницу входа:")
		fmt.Println()
		fmt.Println("  " + client.AuthorizeURL())
		fmt.Println()
		fmt.Println("После входа скопируйте параметр code из URL callback и выполните:")
		fmt.Println()
		fmt.Println("  dashboard-cli login --code <code>")
		return nil
	}

	tokens, err := client.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("обмен authorization code: %w", err)
	}

	if err := saveToken(tokens.BearerToken()); err != nil {
		return fmt.Errorf("сохранение токена: %w", err)
	}

	fmt.Printf("Вход выполнен, токен сохранён (истекает через %d с)\n", tokens.ExpiresIn)
	return nil
}

func cmdProfile(ctx context.Context, client *dashclient.Client) error {
	if err := loadToken(client); err != nil {
		return err
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Email:     %s\n", profile.Email)
	fmt.Printf("Роль:      %s\n", profile.Role)
	fmt.Printf("Device ID: %s\n", derefOrDash(profile.DeviceID))
	return nil
}

func cmdData(ctx context.Context, client *dashclient.Client) error {
	if err := loadToken(client); err != nil {
		return err
	}

	data, err := client.GetData(ctx)
	if err != nil {
		return err
	}

	printItems(data, false)
	return nil
}

func cmdHistory(ctx context.Context, client *dashclient.Client, args []string) error {
	var foldersLimit int

	flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
	flagSet.IntVar(&foldersLimit, "folders", 0, "количество последних снапшотов (0 — значение сервера по умолчанию)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if err := loadToken(client); err != nil {
		return err
	}

	data, err := client.GetHistory(ctx, foldersLimit)
	if err != nil {
		return err
	}

	printItems(data, true)
	return nil
}

// printItems печатает записи таблицей. withFolder добавляет
// колонку снапшота для ответов /api/history.
func printItems(data *dashclient.DataResponse, withFolder bool) {
	fmt.Printf("Роль: %s, записей: %d\n\n", data.Role, data.Count)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if withFolder {
		fmt.Fprintln(w, "СНАПШОТ\tУСТРОЙСТВО\tКВТ·Ч\tВРЕМЯ")
	} else {
		fmt.Fprintln(w, "УСТРОЙСТВО\tКВТ·Ч\tВРЕМЯ")
	}

	for _, item := range data.Items {
		kwh := "-"
		if item.TotalKWh != nil {
			kwh = fmt.Sprintf("%.3f", *item.TotalKWh)
		}
		ts := derefOrDash(item.GenerationTimestamp)

		if withFolder {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", derefOrDash(item.Folder), item.DeviceID, kwh, ts)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n", item.DeviceID, kwh, ts)
		}
	}
	w.Flush()
}

// tokenPath возвращает путь файла с сохранённым токеном.
func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("определение домашнего каталога: %w", err)
	}
	return filepath.Join(home, ".dashboard-cli", "token"), nil
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("создание каталога токена: %w", err)
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken(client *dashclient.Client) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("токен не найден, выполните dashboard-cli login: %w", err)
	}
	client.SetToken(strings.TrimSpace(string(data)))
	return nil
}

func getEnvDefault(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func derefOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `dashboard-cli — консольный клиент Dashboard Module

Использование:
  dashboard-cli login [--code <code>]
  dashboard-cli profile
  dashboard-cli data
  dashboard-cli history [--folders N]

Переменные окружения:
  DASH_API_URL         базовый URL Dashboard Module (по умолчанию http://localhost:8040)
  DASH_COGNITO_DOMAIN  домен Cognito hosted UI
  DASH_CLIENT_ID       app client id
  DASH_REDIRECT_URI    callback URL
  DASH_DEBUG           включить отладочный вывод`)
}
