// Package commands declares slash commands shown in the bot menu.
package commands

// Command is the metadata of one slash command. Handling is uniform: the
// router turns every registered command into a command event.
type Command struct {
	Description string
	// AdminOnly commands are hidden from the menu and rejected for everyone
	// but the configured admin.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}
