package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds the bot's slash commands.
type Registry struct {
	commands map[string]commands.Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds name ("/start") to the registry. Invalid and duplicate
// registrations are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	reason := ""
	switch {
	case name == "" || cmd.Description == "":
		reason = "invalid"
	case name[0] != '/':
		reason = "no_slash_prefix"
	}
	if reason != "" {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns the menu entries sorted by name. visibleOnly drops
// hidden and admin-only commands; aliases are listed under their own name.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
		for _, alias := range meta.Aliases {
			list = append(list, tele.Command{Text: strings.TrimPrefix(alias, "/"), Description: meta.Description})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias to its canonical key and metadata.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// Endpoints lists every name and alias with a leading slash, sorted.
func (r *Registry) Endpoints() []string {
	var out []string
	for name, cmd := range r.commands {
		out = append(out, name)
		for _, alias := range cmd.Aliases {
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// CommandSetter is the part of *tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the visible commands as the Telegram menu.
func InitBotCommands(bot CommandSetter, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.set_failed",
			logger.Err(err),
		)
		return
	}
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "register.commands.set",
		slog.Int("count", len(list)),
	)
}
