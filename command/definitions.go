package command

import "github.com/bwmarrin/discordgo"

// Command names.
const (
	Help         = "dt-help"
	Config       = "dt-config"
	Follow       = "dt-follow"
	Unfollow     = "dt-unfollow"
	SetChannel   = "dt-set-channel"
	UnsetChannel = "dt-unset-channel"
	Allowlist    = "dt-allowlist"
	Ignorelist   = "dt-ignorelist"
	URLFilter    = "dt-urlfilter"
	Stats        = "dt-stats"
)

// Subcommand names.
const (
	SubDefault       = "default"
	SubGame          = "game"
	SubAddAccount    = "add-account"
	SubAddService    = "add-service"
	SubRemoveAccount = "remove-account"
	SubRemoveService = "remove-service"
	SubSet           = "set"
	SubClear         = "clear"
)

// Option names.
const (
	OptGame    = "game"
	OptChannel = "channel"
	OptAccount = "account"
	OptService = "service"
	OptFilters = "filters"
)

var (
	manageGuild int64 = discordgo.PermissionManageGuild
	guildOnly         = false

	textChannels   = []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
	threadChannels = []discordgo.ChannelType{
		discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread,
	}
)

func managed(cmd *discordgo.ApplicationCommand) *discordgo.ApplicationCommand {
	cmd.DefaultMemberPermissions = &manageGuild
	cmd.DMPermission = &guildOnly
	return cmd
}

func gameOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         OptGame,
		Description:  description,
		Type:         discordgo.ApplicationCommandOptionString,
		Required:     true,
		Autocomplete: true,
	}
}

func channelOption(description string, required bool, types []discordgo.ChannelType) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         OptChannel,
		Description:  description,
		Type:         discordgo.ApplicationCommandOptionChannel,
		Required:     required,
		ChannelTypes: types,
	}
}

func autocompleted(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         name,
		Description:  description,
		Type:         discordgo.ApplicationCommandOptionString,
		Required:     true,
		Autocomplete: true,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Options:     options,
	}
}

// HelpCommand defines the structure for the /dt-help command.
type HelpCommand struct{}

func (c *HelpCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:         Help,
		Description:  "Getting started.",
		DMPermission: &guildOnly,
	}
}

// ConfigCommand defines the structure for the /dt-config command.
type ConfigCommand struct{}

func (c *ConfigCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        Config,
		Description: "See the current configuration of this server.",
	})
}

// FollowCommand defines the structure for the /dt-follow command.
type FollowCommand struct{}

func (c *FollowCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        Follow,
		Description: "Add a game to follow.",
		Options:     []*discordgo.ApplicationCommandOption{gameOption("The game to follow")},
	})
}

// UnfollowCommand defines the structure for the /dt-unfollow command.
type UnfollowCommand struct{}

func (c *UnfollowCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        Unfollow,
		Description: "Remove a game from the following list.",
		Options:     []*discordgo.ApplicationCommandOption{gameOption("A followed game")},
	})
}

// SetChannelCommand defines the structure for the /dt-set-channel command.
type SetChannelCommand struct{}

func (c *SetChannelCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        SetChannel,
		Description: "Set where posts are sent.",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(SubDefault, "Set the default notification channel.",
				channelOption("The channel receiving posts of every followed game", true, textChannels)),
			subcommand(SubGame, "Set the notification channel per game. The game will be followed if it's not the case already.",
				channelOption("The channel receiving posts of this game", true, textChannels),
				gameOption("The game")),
		},
	})
}

// UnsetChannelCommand defines the structure for the /dt-unset-channel command.
type UnsetChannelCommand struct{}

func (c *UnsetChannelCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        UnsetChannel,
		Description: "Unset a notification channel.",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(SubDefault, "Unset the default notification channel."),
			subcommand(SubGame, "Unset the notification channel per game.", gameOption("A followed game")),
		},
	})
}

// ListCommand defines /dt-allowlist and /dt-ignorelist, which share their
// subcommands.
type ListCommand struct {
	Kind string
}

func (c *ListCommand) Definition() *discordgo.ApplicationCommand {
	description := "Only posts matching the accounts or services in this list will be sent."
	verb := "Allow"
	if c.Kind == Ignorelist {
		description = "Posts matching the accounts or services in this list will be ignored."
		verb = "Ignore"
	}
	return managed(&discordgo.ApplicationCommand{
		Name:        c.Kind,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(SubAddAccount, verb+" posts from an account.",
				gameOption("A followed game"), autocompleted(OptAccount, "The account, as shown in the footer of posts")),
			subcommand(SubAddService, verb+" posts from a service.",
				gameOption("A followed game"), autocompleted(OptService, "The service, e.g. reddit")),
			subcommand(SubRemoveAccount, "Remove an account from the list.",
				gameOption("A followed game"), autocompleted(OptAccount, "A listed account")),
			subcommand(SubRemoveService, "Remove a service from the list.",
				gameOption("A followed game"), autocompleted(OptService, "A listed service")),
		},
	})
}

// URLFilterCommand defines the structure for the /dt-urlfilter command.
type URLFilterCommand struct{}

func (c *URLFilterCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        URLFilter,
		Description: "Filter or route posts of a service by their URL.",
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(SubSet, "Only send posts whose URL contains one of the filters, optionally to a specific channel.",
				gameOption("A followed game"),
				autocompleted(OptService, "The service, e.g. rsi"),
				&discordgo.ApplicationCommandOption{
					Name:        OptFilters,
					Description: "Comma separated URL fragments, e.g. spectrum/community/SC/forum/1",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
				},
				channelOption("Send matching posts to this channel or thread", false, threadChannels)),
			subcommand(SubClear, "Remove every URL filter of a service.",
				gameOption("A followed game"),
				autocompleted(OptService, "The service")),
		},
	})
}

// StatsCommand defines the structure for the /dt-stats command.
type StatsCommand struct{}

func (c *StatsCommand) Definition() *discordgo.ApplicationCommand {
	return managed(&discordgo.ApplicationCommand{
		Name:        Stats,
		Description: "See DevTracker statistics.",
	})
}
