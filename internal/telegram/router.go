package telegram

import (
	"context"
	"fmt"
	"strconv"
)

// rejectButtonReason причина для отказа через inline кнопку
const rejectButtonReason = "rejected from Telegram"

// CommandHandler представляет обработчик команды
type CommandHandler func(ctx context.Context, args *CommandArgs) (string, error)

// User автор команды
type User struct {
	ID       int64
	UserName string
}

// Actor имя, которое попадает в журнал как reviewed_by
func (u User) Actor() string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "tg:" + strconv.FormatInt(u.ID, 10)
}

// Router маршрутизирует команды к обработчикам
type Router struct {
	handlers      map[string]CommandHandler
	authManager   *AuthManager
	formatter     *Formatter
	adminCommands map[string]bool
	ratePerSecond int
}

// NewRouter создает новый роутер
func NewRouter(authManager *AuthManager, formatter *Formatter) *Router {
	return &Router{
		handlers:      make(map[string]CommandHandler),
		authManager:   authManager,
		formatter:     formatter,
		adminCommands: make(map[string]bool),
		ratePerSecond: 2,
	}
}

// RegisterHandler регистрирует обработчик команды
func (r *Router) RegisterHandler(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// RegisterAdminHandler регистрирует обработчик с требованием админских прав
func (r *Router) RegisterAdminHandler(command string, handler CommandHandler) {
	r.adminCommands[command] = true
	r.handlers[command] = handler
}

// HandleCommand обрабатывает команду. Ответ всегда пригоден для отправки;
// err возвращается только для логирования.
func (r *Router) HandleCommand(ctx context.Context, from User, text string) (string, error) {
	if resp, ok := r.admit(from); !ok {
		return resp, nil
	}

	args, err := ParseCommand(text)
	if err != nil {
		return r.formatter.FormatError(err), nil
	}
	args.Actor = from.Actor()

	return r.dispatch(ctx, from, args)
}

// HandleCallback обрабатывает нажатие inline кнопки approve/reject
func (r *Router) HandleCallback(ctx context.Context, from User, data string) (string, error) {
	if resp, ok := r.admit(from); !ok {
		return resp, nil
	}

	command, id, err := ParseCallback(data)
	if err != nil {
		return r.formatter.FormatError(err), err
	}

	args := &CommandArgs{Command: command, ID: id, Actor: from.Actor()}
	if CommandType(command) == CmdReject {
		args.Text = rejectButtonReason
	}
	return r.dispatch(ctx, from, args)
}

func (r *Router) admit(from User) (string, bool) {
	if err := r.authManager.CheckRateLimit(from.ID, r.ratePerSecond); err != nil {
		return r.formatter.FormatError(err), false
	}
	if !r.authManager.IsAllowed(from.ID) {
		return r.formatter.T("access_denied"), false
	}
	return "", true
}

func (r *Router) dispatch(ctx context.Context, from User, args *CommandArgs) (string, error) {
	if r.adminCommands[args.Command] {
		if err := r.authManager.RequireAdmin(from.ID); err != nil {
			return r.formatter.T("admin_required"), nil
		}
	}

	handler, exists := r.handlers[args.Command]
	if !exists {
		return fmt.Sprintf("%s: %s", r.formatter.T("error"), "unknown command"), nil
	}

	response, err := handler(ctx, args)
	if err != nil {
		return r.formatter.FormatError(err), err
	}
	return response, nil
}

// IsAdminCommand проверяет, является ли команда админской
func (r *Router) IsAdminCommand(command string) bool {
	return r.adminCommands[command]
}
