package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillm/action-guard/internal/notify"
)

// CommandArgs представляет распарсенные аргументы команды
type CommandArgs struct {
	Command string
	ID      string // id запроса или действия
	Text    string // feedback / причина отказа
	Mode    string
	Action  string // on/off/status для panicstop
	Actor   string // кто отправил, заполняет роутер
	Count   int
	Raw     []string
}

// CommandType представляет тип команды
type CommandType string

const (
	// Info commands
	CmdPending     CommandType = "pending"
	CmdSummary     CommandType = "summary"
	CmdCheckpoints CommandType = "checkpoints"
	CmdHelp        CommandType = "help"

	// Review commands
	CmdApprove  CommandType = "approve"
	CmdReject   CommandType = "reject"
	CmdRollback CommandType = "rollback"

	// Admin commands
	CmdMode      CommandType = "mode"
	CmdPanicStop CommandType = "panicstop"
)

const maxListCount = 50

// ParseCommand парсит команду и аргументы
func ParseCommand(text string) (*CommandArgs, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil, fmt.Errorf("not a command")
	}

	parts := strings.Fields(text)
	if len(parts) == 0 || parts[0] == "/" {
		return nil, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	// /approve@guard_bot в групповых чатах
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	cmd = normalizeCommand(cmd)

	args := &CommandArgs{
		Command: cmd,
		Raw:     parts[1:],
	}

	switch CommandType(cmd) {
	case CmdHelp, CmdSummary, "start":
		return args, nil

	case CmdPending, CmdCheckpoints:
		// /pending [N]
		args.Count = 10
		if len(parts) >= 2 {
			n := parseInt(parts[1], 0)
			if n <= 0 || n > maxListCount {
				return nil, fmt.Errorf("count must be between 1 and %d", maxListCount)
			}
			args.Count = n
		}
		return args, nil

	case CmdApprove:
		// /approve <ID> [FEEDBACK...]
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: /approve <ID> [feedback]")
		}
		args.ID = parts[1]
		args.Text = strings.Join(parts[2:], " ")
		return args, validateID(args.ID)

	case CmdReject:
		// /reject <ID> <REASON...>
		if len(parts) < 3 {
			return nil, fmt.Errorf("usage: /reject <ID> <reason>")
		}
		args.ID = parts[1]
		args.Text = strings.Join(parts[2:], " ")
		return args, validateID(args.ID)

	case CmdRollback:
		// /rollback <ACTION_ID>
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: /rollback <action ID>")
		}
		args.ID = parts[1]
		return args, validateID(args.ID)

	case CmdMode:
		// /mode [shadow|pilot|full]
		if len(parts) >= 2 {
			args.Mode = strings.ToLower(parts[1])
			switch args.Mode {
			case "shadow", "pilot", "full":
			default:
				return nil, fmt.Errorf("usage: /mode [shadow|pilot|full]")
			}
		}
		return args, nil

	case CmdPanicStop:
		// /panicstop [on|off]
		if len(parts) >= 2 {
			args.Action = normalizeAction(parts[1])
			if args.Action != "on" && args.Action != "off" {
				return nil, fmt.Errorf("usage: /panicstop [on|off]")
			}
		} else {
			// Без параметра - показать статус
			args.Action = "status"
		}
		return args, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

// ParseCallback разбирает данные inline кнопки "approve:<id>" / "reject:<id>"
func ParseCallback(data string) (command, id string, err error) {
	switch {
	case strings.HasPrefix(data, notify.CallbackApprove):
		command, id = string(CmdApprove), strings.TrimPrefix(data, notify.CallbackApprove)
	case strings.HasPrefix(data, notify.CallbackReject):
		command, id = string(CmdReject), strings.TrimPrefix(data, notify.CallbackReject)
	default:
		return "", "", fmt.Errorf("unknown callback: %q", data)
	}
	if err := validateID(id); err != nil {
		return "", "", err
	}
	return command, id, nil
}

// validateID отсекает пустые и явно мусорные идентификаторы
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("id is too long")
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Errorf("invalid id %q", id)
		}
	}
	return nil
}

// normalizeCommand нормализует команду (поддержка русского языка)
func normalizeCommand(cmd string) string {
	cmd = strings.ToLower(strings.TrimSpace(cmd))

	ruToEn := map[string]string{
		"очередь":     "pending",
		"подтвердить": "approve",
		"отклонить":   "reject",
		"откат":       "rollback",
		"сводка":      "summary",
		"режим":       "mode",
		"стоп":        "panicstop",
		"помощь":      "help",
	}

	if enCmd, ok := ruToEn[cmd]; ok {
		return enCmd
	}

	return cmd
}

// normalizeAction нормализует действие (on/off)
func normalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))

	actionMap := map[string]string{
		"вкл":       "on",
		"включить":  "on",
		"да":        "on",
		"yes":       "on",
		"выкл":      "off",
		"выключить": "off",
		"нет":       "off",
		"no":        "off",
	}

	if normalized, ok := actionMap[action]; ok {
		return normalized
	}

	return action
}

// parseInt безопасно парсит int
func parseInt(s string, defaultVal int) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
