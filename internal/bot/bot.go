package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
	"chore-tracker/internal/sentinel"
	"chore-tracker/internal/service"
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /create &lt;name&gt; — start a household, you become its first member\n" +
	"• /join &lt;code&gt; [name] — join a household with its share code\n" +
	"• /rename &lt;name&gt; — change your display name\n" +
	"• /category &lt;name&gt; [weight] — add a chore category (weight defaults to 1)\n" +
	"• /categories — list categories and your counts\n" +
	"• /log &lt;category id or name&gt; — record a finished chore\n" +
	"• /history — the last 20 chores\n" +
	"• /standings — who did how much\n" +
	"• /whoami — your household and share code"

// Bot connects the Telegram API to the chore service.
type Bot struct {
	api       *tgbotapi.BotAPI
	chores    *service.ChoreService
	summaries *service.SummaryService
	links     *repository.ChatLinkRepository
	logger    *slog.Logger
	now       func() time.Time
}

func New(token string, chores *service.ChoreService, summaries *service.SummaryService, links *repository.ChatLinkRepository, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:       api,
		chores:    chores,
		summaries: summaries,
		links:     links,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", "telegram_id", update.Message.From.ID, "error", err)
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Send /help to see what I can do.")
	}

	b.logger.Info("command", "telegram_id", msg.From.ID, "command", msg.Command())
	args := strings.TrimSpace(msg.CommandArguments())

	var reply string
	var err error
	switch msg.Command() {
	case "start", "help":
		reply = helpText
	case "create":
		reply, err = b.handleCreate(ctx, msg, args)
	case "join":
		reply, err = b.handleJoin(ctx, msg, args)
	case "rename":
		reply, err = b.handleRename(ctx, msg, args)
	case "category":
		reply, err = b.handleCategory(ctx, msg, args)
	case "categories":
		reply, err = b.handleCategories(ctx, msg)
	case "log":
		reply, err = b.handleLog(ctx, msg, args)
	case "history":
		reply, err = b.handleHistory(ctx, msg)
	case "standings", "report":
		reply, err = b.handleStandings(ctx, msg)
	case "whoami":
		reply, err = b.handleWhoAmI(ctx, msg)
	default:
		reply = "Unknown command. See /help."
	}
	if err != nil {
		b.logger.Warn("command failed", "command", msg.Command(), "outcome", service.Outcome(err), "error", err)
		reply = errorReply(err)
	}
	return b.sendText(msg.Chat.ID, reply)
}

func (b *Bot) handleCreate(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	name := displayName(args, msg.From)
	created, err := b.chores.CreateHousehold(ctx, name)
	if err != nil {
		return "", err
	}
	if _, err := b.links.Link(ctx, msg.From.ID, msg.Chat.ID, created.UserID, created.HouseholdID); err != nil {
		return "", err
	}
	return fmt.Sprintf("🏠 Household #%d created.\nShare code: <code>%s</code>\nOthers can join with /join %s",
		created.HouseholdID, created.ShareCode, created.ShareCode), nil
}

func (b *Bot) handleJoin(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	code, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if !model.IsShareCode(code) {
		return "Usage: /join &lt;share code&gt; [name]", nil
	}
	joined, err := b.chores.JoinHousehold(ctx, code, displayName(rest, msg.From))
	if err != nil {
		return "", err
	}
	if _, err := b.links.Link(ctx, msg.From.ID, msg.Chat.ID, joined.UserID, joined.HouseholdID); err != nil {
		return "", err
	}
	return fmt.Sprintf("👋 Welcome to household #%d. See /categories to get started.", joined.HouseholdID), nil
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	user, err := b.chores.RenameUser(ctx, link.UserID, args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✏️ You are now <b>%s</b>.", escape(user.Name)), nil
}

func (b *Bot) handleCategory(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	name, weight, err := parseCategoryArgs(args)
	if err != nil {
		return "", err
	}
	category, err := b.chores.CreateCategory(ctx, link.HouseholdID, name, weight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📂 Category #%d <b>%s</b> added (weight %d).", category.ID, escape(category.Name), category.Weight), nil
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	categories, err := b.chores.GetCategories(ctx, link.HouseholdID)
	if err != nil {
		return "", err
	}
	return formatCategories(categories, link.UserID), nil
}

func (b *Bot) handleLog(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	categoryID, err := b.resolveCategory(ctx, link.HouseholdID, args)
	if err != nil {
		return "", err
	}
	task, err := b.chores.LogTask(ctx, link.UserID, categoryID)
	if err != nil {
		return "", err
	}
	counts, err := b.chores.GetOverallCounts(ctx, link.HouseholdID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Logged task #%d. Your total is now %d.", task.ID, counts[link.UserID]), nil
}

func (b *Bot) resolveCategory(ctx context.Context, householdID int64, args string) (int64, error) {
	if args == "" {
		return 0, fmt.Errorf("%w: category id or name is required", sentinel.ErrValidation)
	}
	if id, err := strconv.ParseInt(args, 10, 64); err == nil {
		return id, nil
	}
	categories, err := b.chores.GetCategories(ctx, householdID)
	if err != nil {
		return 0, err
	}
	h := model.Household{Categories: categories}
	if c := h.CategoryByName(args); c != nil {
		return c.ID, nil
	}
	return 0, fmt.Errorf("%w: category %q", sentinel.ErrNotFound, args)
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	history, err := b.chores.GetHistory(ctx, link.HouseholdID)
	if err != nil {
		return "", err
	}
	return formatHistory(history, b.now().Location()), nil
}

func (b *Bot) handleStandings(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	return b.summaries.HouseholdDigest(ctx, link.HouseholdID, b.now())
}

func (b *Bot) handleWhoAmI(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	link, err := b.links.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return "", err
	}
	members, err := b.chores.GetUsers(ctx, link.HouseholdID)
	if err != nil {
		return "", err
	}
	name := ""
	for _, u := range members.Users {
		if u.ID == link.UserID {
			name = u.Name
		}
	}
	return fmt.Sprintf("🙋 <b>%s</b> (user #%d) in household #%d with %d member(s).\nShare code: <code>%s</code>",
		escape(name), link.UserID, link.HouseholdID, len(members.Users), members.ShareCode), nil
}

// SendDigests pushes the household digest to every linked chat.
func (b *Bot) SendDigests(ctx context.Context) error {
	links, err := b.links.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	digests := make(map[int64]string)
	sent := make(map[int64]bool)
	for _, link := range links {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if sent[link.ChatID] {
			continue
		}
		text, ok := digests[link.HouseholdID]
		if !ok {
			text, err = b.summaries.HouseholdDigest(ctx, link.HouseholdID, now)
			if err != nil {
				b.logger.Error("build digest", "household_id", link.HouseholdID, "error", err)
				continue
			}
			digests[link.HouseholdID] = text
		}
		if err := b.sendText(link.ChatID, text); err != nil {
			b.logger.Error("send digest", "chat_id", link.ChatID, "error", err)
			continue
		}
		sent[link.ChatID] = true
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func displayName(explicit string, from *tgbotapi.User) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if from == nil {
		return ""
	}
	return strings.TrimSpace(from.FirstName + " " + from.LastName)
}

// parseCategoryArgs splits "Take out trash 2" into a name and an optional
// trailing weight.
func parseCategoryArgs(args string) (string, int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", 0, fmt.Errorf("%w: category name is required", sentinel.ErrValidation)
	}
	if len(fields) > 1 {
		if w, err := strconv.ParseInt(fields[len(fields)-1], 10, 64); err == nil {
			return strings.Join(fields[:len(fields)-1], " "), w, nil
		}
	}
	return strings.Join(fields, " "), 0, nil
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrValidation):
		return "⚠️ " + escape(err.Error())
	case errors.Is(err, sentinel.ErrNotFound):
		return "🔍 " + escape(err.Error()) + "\nUse /create or /join first if you have not yet."
	case errors.Is(err, sentinel.ErrConflict):
		return "♻️ " + escape(err.Error())
	default:
		return "💥 Could not reach the chore store. Please try again later."
	}
}

func formatCategories(categories []model.Category, userID int64) string {
	if len(categories) == 0 {
		return "📂 No categories yet. Add one with /category &lt;name&gt; [weight]."
	}
	var sb strings.Builder
	sb.WriteString("📂 <b>Categories</b>\n")
	for _, c := range categories {
		sb.WriteString(fmt.Sprintf("#%d %s · weight %d · you: %d\n", c.ID, escape(c.Name), c.Weight, c.TaskCounts[userID]))
	}
	return strings.TrimSpace(sb.String())
}

func formatHistory(history []service.HistoryEntry, loc *time.Location) string {
	if len(history) == 0 {
		return "🧹 Nothing logged yet."
	}
	var sb strings.Builder
	sb.WriteString("🧹 <b>Recent chores</b>\n")
	for _, entry := range history {
		sb.WriteString(fmt.Sprintf("%s · %s · %s\n",
			entry.Time.In(loc).Format("02.01 15:04"), escape(entry.User), escape(entry.Category)))
	}
	return strings.TrimSpace(sb.String())
}

func escape(s string) string {
	return html.EscapeString(s)
}
