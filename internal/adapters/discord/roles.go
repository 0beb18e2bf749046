package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// memberAPI is the subset of *discordgo.Session the role mutator needs.
type memberAPI interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// RoleMutator grants and revokes guild roles over the REST API.
type RoleMutator struct {
	api memberAPI
}

// NewRoleMutator creates a RoleMutator over api, usually a *discordgo.Session.
func NewRoleMutator(api memberAPI) *RoleMutator {
	return &RoleMutator{api: api}
}

// GrantRole adds roleID to the member.
func (m *RoleMutator) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return m.api.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RevokeRole removes roleID from the member.
func (m *RoleMutator) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	return m.api.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// CurrentRoles returns the set of role ids the member holds.
func (m *RoleMutator) CurrentRoles(ctx context.Context, guildID, userID string) (map[string]struct{}, error) {
	member, err := m.api.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = struct{}{}
	}
	return held, nil
}
