package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"xtrack-client/internal/adapters/api"
	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/config"
	"xtrack-client/internal/infra/log"
	"xtrack-client/internal/infra/store"
	"xtrack-client/internal/usecase/notify"
	"xtrack-client/internal/usecase/playground"
	"xtrack-client/internal/usecase/registry"
	"xtrack-client/internal/usecase/render"
	"xtrack-client/internal/usecase/session"
)

type app struct {
	client     *api.Client
	sess       *session.Controller
	registry   *registry.Service
	playground *playground.Service
	reader     *bufio.Scanner
}

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	durable, err := store.OpenSQLite(cfg.StatePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("cli: не удалось открыть файл состояния")
	}
	defer durable.Close()

	creds := session.NewCredentialStore(store.NewMemory(), durable)
	sess := session.NewController(creds, logger.With().Str("component", "session").Logger())

	client, err := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(sess.Token),
		api.WithAuthFailureHook(sess.Invalidate),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("cli: не удалось создать API-клиент")
	}

	ctx := context.Background()
	sess.Start(ctx, client)

	reg := registry.NewService(client, client, client, sess, logger.With().Str("component", "registry").Logger())
	limiter := playground.NewLimiter(durable, cfg.Playground.RunLimit, cfg.Playground.Window, logger)
	pg := playground.NewService(client, limiter, logger.With().Str("component", "playground").Logger())

	a := &app{
		client:     client,
		sess:       sess,
		registry:   reg,
		playground: pg,
		reader:     bufio.NewScanner(os.Stdin),
	}
	a.run(ctx)
}

func (a *app) run(ctx context.Context) {
	fmt.Println("XTrack. Введите help для списка команд.")
	for {
		fmt.Printf("xtrack %s> ", a.status())
		if !a.reader.Scan() {
			return
		}
		parts := strings.Fields(a.reader.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			a.printHelp()
		case "login":
			err = a.login(ctx)
		case "register":
			err = a.register(ctx)
		case "verify":
			err = a.verifyEmail(ctx)
		case "forgot":
			err = a.forgotPassword(ctx)
		case "passwd":
			err = a.changePassword(ctx)
		case "logout":
			a.sess.Logout()
			fmt.Println("Вы вышли из системы.")
		case "whoami":
			a.whoami()
		case "jobs":
			a.listJobs(ctx)
		case "add":
			err = a.addJob(ctx)
		case "toggle":
			err = a.withJobID(args, func(id int64) error { return a.toggleJob(ctx, id) })
		case "rm":
			err = a.withJobID(args, func(id int64) error { return a.registry.Remove(ctx, id) })
		case "run":
			err = a.withJobID(args, func(id int64) error { return a.runJob(ctx, id) })
		case "stats":
			err = a.withJobID(args, func(id int64) error { return a.showStats(ctx, id) })
		case "summaries":
			err = a.withJobID(args, func(id int64) error { return a.showSummaries(ctx, id) })
		case "send":
			err = a.sendSummary(ctx, args)
		case "targets":
			err = a.listTargets(ctx)
		case "bind":
			err = a.bindTelegram(ctx)
		case "default":
			err = a.withJobID(args, func(id int64) error { return a.client.SetDefaultTarget(ctx, id) })
		case "test":
			err = a.runTest(ctx)
		case "quota":
			fmt.Printf("Осталось запусков песочницы: %d (устройство %s)\n",
				a.playground.Limiter().Remaining(), a.playground.Limiter().DeviceID())
		case "exit", "quit":
			return
		default:
			fmt.Printf("Неизвестная команда %q. Введите help.\n", cmd)
		}

		if err != nil {
			if errors.Is(err, notify.ErrNoTelegramTarget) {
				fmt.Println("Telegram-чат не привязан. Команда bind создаст токен привязки.")
				continue
			}
			fmt.Println("Ошибка:", err)
		}
	}
}

func (a *app) status() string {
	if user, ok := a.sess.User(); ok {
		return user.Email
	}
	return "anonymous"
}

func (a *app) printHelp() {
	fmt.Println(`Команды:
  login | register | verify | forgot | passwd | logout | whoami
  jobs | add | toggle <id> | rm <id> | run <id>
  stats <id> | summaries <id> | send <id> <summary_id>
  targets | bind | default <target_id>
  test | quota
  exit`)
}

func (a *app) prompt(label string) string {
	fmt.Printf("%s: ", label)
	if !a.reader.Scan() {
		return ""
	}
	return strings.TrimSpace(a.reader.Text())
}

func (a *app) login(ctx context.Context) error {
	email := a.prompt("Email")
	password := a.prompt("Пароль")
	remember := strings.EqualFold(a.prompt("Запомнить меня (y/n)"), "y")

	result, err := a.client.Login(ctx, email, password, remember)
	if err != nil {
		return err
	}
	if err := a.sess.Login(result.Token, result.User, remember); err != nil {
		fmt.Println("Внимание: токен не сохранён, сессия закончится с процессом.")
	}
	fmt.Printf("Добро пожаловать, %s\n", result.User.Email)
	return nil
}

func (a *app) register(ctx context.Context) error {
	email := a.prompt("Email")
	password := a.prompt("Пароль")
	confirm := a.prompt("Пароль ещё раз")
	if password != confirm {
		return errors.New("пароли не совпадают")
	}
	if err := a.client.Register(ctx, email, password); err != nil {
		return err
	}
	fmt.Println("Код подтверждения отправлен на почту. Введите verify.")
	return nil
}

func (a *app) verifyEmail(ctx context.Context) error {
	email := a.prompt("Email")
	code := a.prompt("Код из письма")
	result, err := a.client.VerifyEmail(ctx, email, code)
	if err != nil {
		return err
	}
	if err := a.sess.Login(result.Token, result.User, false); err != nil {
		fmt.Println("Внимание: токен не сохранён, сессия закончится с процессом.")
	}
	fmt.Println("Почта подтверждена, вы вошли в систему.")
	return nil
}

func (a *app) forgotPassword(ctx context.Context) error {
	email := a.prompt("Email")
	if err := a.client.ForgotPassword(ctx, email); err != nil {
		return err
	}
	code := a.prompt("Код из письма")
	password := a.prompt("Новый пароль")
	result, err := a.client.ResetPassword(ctx, email, code, password)
	if err != nil {
		return err
	}
	if err := a.sess.Login(result.Token, result.User, false); err != nil {
		fmt.Println("Внимание: токен не сохранён, сессия закончится с процессом.")
	}
	fmt.Println("Пароль обновлён.")
	return nil
}

func (a *app) changePassword(ctx context.Context) error {
	oldPassword := a.prompt("Текущий пароль")
	newPassword := a.prompt("Новый пароль")
	if err := a.client.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}
	fmt.Println("Пароль изменён.")
	return nil
}

func (a *app) whoami() {
	user, ok := a.sess.User()
	if !ok {
		fmt.Println("Вы не вошли в систему.")
		return
	}
	fmt.Printf("%s (id=%d)", user.Email, user.ID)
	if user.Name != "" {
		fmt.Printf(", %s", user.Name)
	}
	fmt.Println()
}

func (a *app) listJobs(ctx context.Context) {
	jobs := a.registry.List(ctx)
	if len(jobs) == 0 {
		fmt.Println("Задач нет.")
		return
	}
	for _, job := range jobs {
		fmt.Println("  " + render.FormatJob(job))
	}
}

func (a *app) addJob(ctx context.Context) error {
	spec := registry.CreateSpec{
		XUsername: a.prompt("Аккаунт X (без @)"),
		Frequency: domain.Frequency(a.prompt("Периодичность (hourly|every_6_hours|every_12_hours|daily)")),
		TopicsRaw: a.prompt("Темы через запятую (можно пусто)"),
		Language:  a.prompt("Язык дайджеста (например en)"),
	}
	spec.EmailEnabled = strings.EqualFold(a.prompt("Присылать на почту (y/n)"), "y")
	spec.TelegramEnabled = strings.EqualFold(a.prompt("Присылать в Telegram (y/n)"), "y")
	if spec.TelegramEnabled {
		targets, err := a.client.ListTargets(ctx)
		if err != nil {
			return err
		}
		a.printTargets(targets)
		if id, ok := notify.DefaultSelection(targets); ok {
			fmt.Printf("Чат по умолчанию: %d\n", id)
		}
		for _, field := range strings.Split(a.prompt("Идентификаторы чатов через запятую"), ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return fmt.Errorf("некорректный идентификатор %q", field)
			}
			spec.TelegramTargetIDs = append(spec.TelegramTargetIDs, id)
		}
	}

	job, err := a.registry.Create(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Printf("Задача #%d создана.\n", job.ID)
	return nil
}

func (a *app) toggleJob(ctx context.Context, jobID int64) error {
	for _, job := range a.registry.Jobs() {
		if job.ID == jobID {
			updated, err := a.registry.ToggleActive(ctx, job)
			if err != nil {
				return err
			}
			state := "приостановлена"
			if updated.IsActive {
				state = "активна"
			}
			fmt.Printf("Задача #%d %s.\n", updated.ID, state)
			return nil
		}
	}
	return fmt.Errorf("задача #%d не найдена, обновите список командой jobs", jobID)
}

func (a *app) runJob(ctx context.Context, jobID int64) error {
	fmt.Println("Запуск... это может занять время.")
	summary, err := a.registry.Run(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Println("Готово.")
	fmt.Println(render.FormatSummary(summary))
	return nil
}

func (a *app) showStats(ctx context.Context, jobID int64) error {
	if err := a.registry.Refresh(ctx, jobID); err != nil {
		return err
	}
	fmt.Println(render.FormatStats(a.registry.Stats(jobID)))
	return nil
}

func (a *app) showSummaries(ctx context.Context, jobID int64) error {
	summaries, err := a.registry.FetchSummaries(ctx, jobID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("Дайджестов пока нет.")
		return nil
	}
	for i, summary := range summaries {
		if i > 0 {
			fmt.Println("---")
		}
		fmt.Println(render.FormatSummary(summary))
	}
	return nil
}

func (a *app) sendSummary(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("использование: send <id задачи> <id дайджеста>")
	}
	jobID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный идентификатор задачи %q", args[0])
	}
	sent, err := a.registry.SendSummaryEmail(ctx, jobID, args[1])
	if err != nil {
		return err
	}
	if !sent {
		fmt.Println("Почтовый сервис на бэкенде не настроен.")
		return nil
	}
	fmt.Println("Письмо отправлено.")
	return nil
}

func (a *app) listTargets(ctx context.Context) error {
	targets, err := a.client.ListTargets(ctx)
	if err != nil {
		return err
	}
	a.printTargets(targets)
	return nil
}

func (a *app) printTargets(targets []domain.NotificationTarget) {
	if len(targets) == 0 {
		fmt.Println("Привязанных мест доставки нет.")
		return
	}
	for _, target := range targets {
		fmt.Println("  " + render.FormatTarget(target))
	}
}

func (a *app) bindTelegram(ctx context.Context) error {
	token, err := a.client.CreateBindToken(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Отправьте боту XTrack сообщение: /bind %s\n", token.Token)
	fmt.Printf("Токен действует до %s. Затем выполните targets.\n", token.ExpiresAt)
	return nil
}

func (a *app) runTest(ctx context.Context) error {
	remaining := a.playground.Limiter().Remaining()
	fmt.Printf("Осталось запусков песочницы: %d\n", remaining)

	req := domain.TestRequest{
		XUsername: a.prompt("Аккаунт X (без @)"),
	}
	if hours := a.prompt("Часов назад (1-168, по умолчанию 24)"); hours != "" {
		parsed, err := strconv.Atoi(hours)
		if err != nil {
			return fmt.Errorf("некорректное число часов %q", hours)
		}
		req.HoursBack = parsed
	}
	req.Topics = registry.ParseTopics(a.prompt("Темы через запятую (можно пусто)"))
	req.Language = a.prompt("Язык (можно пусто)")

	fmt.Println("Запуск теста... это может занять время.")
	result, err := a.playground.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(render.FormatTestResult(result))
	return nil
}

func (a *app) withJobID(args []string, fn func(int64) error) error {
	if len(args) == 0 {
		return errors.New("нужен числовой идентификатор")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный идентификатор %q", args[0])
	}
	return fn(id)
}
