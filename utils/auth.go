package utils

import "github.com/bwmarrin/discordgo"

// Permission levels a command can require.
const (
	LevelDeveloper = "developer"
	LevelManager   = "manager"
	LevelEveryone  = "everyone"
)

// Auth provides methods for authorization checks.
type Auth struct {
	developers map[string]struct{}
}

func NewAuth(developers []string) *Auth {
	a := &Auth{developers: make(map[string]struct{}, len(developers))}
	for _, id := range developers {
		a.developers[id] = struct{}{}
	}
	return a
}

// IsDeveloper checks if a user is a developer.
func (a *Auth) IsDeveloper(userID string) bool {
	_, ok := a.developers[userID]
	return ok
}

// CanManageGuild reports whether the member has Manage Server or
// Administrator in the channel the interaction came from.
func (a *Auth) CanManageGuild(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	const mask = discordgo.PermissionManageGuild | discordgo.PermissionAdministrator
	return member.Permissions&mask != 0
}

// CheckPermission checks if the interaction's user has the required level.
// Developers pass every check.
func (a *Auth) CheckPermission(i *discordgo.InteractionCreate, requiredLevel string) bool {
	userID := interactionUserID(i)
	if a.IsDeveloper(userID) {
		return true
	}

	switch requiredLevel {
	case LevelManager:
		return a.CanManageGuild(i.Member)
	case LevelEveryone:
		return true
	default:
		return false
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
