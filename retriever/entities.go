package retriever

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/goliatone/go-entity-retriever/entity"
)

// Table names, one per entity kind.
const (
	TableGuildConfig = "guild_config"
	TableAdminConfig = "admin_config"
	TableAuditConfig = "audit_config"
	TableLocalMember = "local_member"
	TableMessageInfo = "message_info"
)

// Lookup key columns per kind. Reads go through these, not the row id.
var (
	GuildKey   = []string{"guild_id"}
	MemberKey  = []string{"user_id", "guild_id"}
	MessageKey = []string{"message_id"}
)

// Base carries the row identity every kind shares. A zero ID means the
// entity has not been persisted.
type Base struct {
	ID int64
}

// Guild scopes an entity to a guild.
type Guild struct {
	Base
	GuildID int64
}

func baseTrait[T any](base func(*T) *Base) *entity.Trait[T] {
	return &entity.Trait[T]{
		Name:   "Base",
		Mapped: true,
		Fields: []entity.Column[T]{
			entity.OptionalField("id", func(e *T) *int64 { return &base(e).ID }, entity.Id, entity.Generated),
		},
	}
}

func guildTrait[T any](guild func(*T) *Guild) *entity.Trait[T] {
	return &entity.Trait[T]{
		Name:   "GuildScoped",
		Mapped: true,
		Super:  baseTrait(func(e *T) *Base { return &guild(e).Base }),
		Fields: []entity.Column[T]{
			entity.Field("guild_id", func(e *T) *int64 { return &guild(e).GuildID }),
		},
	}
}

// Prefixes is the list of command prefixes of a guild, stored as a JSON
// array.
type Prefixes []string

// Scan implements sql.Scanner. It also accepts the decoded forms a cache
// codec hands back.
func (p *Prefixes) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		return p.unmarshal([]byte(v))
	case []byte:
		return p.unmarshal(v)
	case []string:
		*p = append(Prefixes(nil), v...)
		return nil
	case []any:
		out := make(Prefixes, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("prefix %v is %T, not a string", item, item)
			}
			out = append(out, s)
		}
		*p = out
		return nil
	}
	return fmt.Errorf("cannot scan %T into Prefixes", src)
}

func (p *Prefixes) unmarshal(data []byte) error {
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("prefixes: %w", err)
	}
	*p = out
	return nil
}

// Value implements driver.Valuer.
func (p Prefixes) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// FormatPrefix pads word-like prefixes with a trailing space so that
// "bot help" reads naturally while "$help" stays glued.
func FormatPrefix(prefix string) string {
	letters := 0
	for _, r := range prefix {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters >= 2 || len([]rune(prefix)) > 4 {
		return prefix + " "
	}
	return prefix
}

// GuildConfig holds the per-guild bot settings.
type GuildConfig struct {
	Guild
	Prefixes Prefixes
	Locale   string
	Timezone string
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *GuildConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clone returns a deep copy.
func (c *GuildConfig) Clone() *GuildConfig {
	out := *c
	out.Prefixes = append(Prefixes(nil), c.Prefixes...)
	return &out
}

// GuildConfigSchema maps GuildConfig to guild_config.
func GuildConfigSchema() entity.Schema[GuildConfig] {
	return entity.Schema[GuildConfig]{
		Name:   "GuildConfig",
		Entity: true,
		Table:  TableGuildConfig,
		Super:  guildTrait(func(c *GuildConfig) *Guild { return &c.Guild }),
		Fields: []entity.Column[GuildConfig]{
			entity.Field("prefixes", func(c *GuildConfig) *Prefixes { return &c.Prefixes }),
			entity.Field("locale", func(c *GuildConfig) *string { return &c.Locale }),
			entity.Field("timezone", func(c *GuildConfig) *string { return &c.Timezone }),
		},
		New: func() *GuildConfig { return &GuildConfig{} },
	}
}

// AdminConfig holds moderation settings.
type AdminConfig struct {
	Guild
	MaxWarnCount    int64
	MuteBaseDelay   time.Duration
	WarnExpireDelay time.Duration
	MuteRoleID      int64
}

// Clone returns a copy.
func (c *AdminConfig) Clone() *AdminConfig {
	out := *c
	return &out
}

// AdminConfigSchema maps AdminConfig to admin_config.
func AdminConfigSchema() entity.Schema[AdminConfig] {
	return entity.Schema[AdminConfig]{
		Name:   "AdminConfig",
		Entity: true,
		Table:  TableAdminConfig,
		Super:  guildTrait(func(c *AdminConfig) *Guild { return &c.Guild }),
		Fields: []entity.Column[AdminConfig]{
			entity.Field("max_warn_count", func(c *AdminConfig) *int64 { return &c.MaxWarnCount }),
			entity.Field("mute_base_delay", func(c *AdminConfig) *time.Duration { return &c.MuteBaseDelay }),
			entity.Field("warn_expire_delay", func(c *AdminConfig) *time.Duration { return &c.WarnExpireDelay }),
			entity.Field("mute_role_id", func(c *AdminConfig) *int64 { return &c.MuteRoleID }),
		},
		New: func() *AdminConfig { return &AdminConfig{} },
	}
}

// AuditConfig controls where audit events are forwarded.
type AuditConfig struct {
	Guild
	Enabled   bool
	ChannelID int64
}

// Clone returns a copy.
func (c *AuditConfig) Clone() *AuditConfig {
	out := *c
	return &out
}

// AuditConfigSchema maps AuditConfig to audit_config.
func AuditConfigSchema() entity.Schema[AuditConfig] {
	return entity.Schema[AuditConfig]{
		Name:   "AuditConfig",
		Entity: true,
		Table:  TableAuditConfig,
		Super:  guildTrait(func(c *AuditConfig) *Guild { return &c.Guild }),
		Fields: []entity.Column[AuditConfig]{
			entity.Field("enabled", func(c *AuditConfig) *bool { return &c.Enabled }),
			entity.Field("channel_id", func(c *AuditConfig) *int64 { return &c.ChannelID }),
		},
		New: func() *AuditConfig { return &AuditConfig{} },
	}
}

// LocalMember is a user as seen by one guild.
type LocalMember struct {
	Guild
	UserID        int64
	EffectiveName string
}

// Clone returns a copy.
func (m *LocalMember) Clone() *LocalMember {
	out := *m
	return &out
}

// LocalMemberSchema maps LocalMember to local_member.
func LocalMemberSchema() entity.Schema[LocalMember] {
	return entity.Schema[LocalMember]{
		Name:   "LocalMember",
		Entity: true,
		Table:  TableLocalMember,
		Super:  guildTrait(func(m *LocalMember) *Guild { return &m.Guild }),
		Fields: []entity.Column[LocalMember]{
			entity.Field("user_id", func(m *LocalMember) *int64 { return &m.UserID }),
			entity.Field("effective_name", func(m *LocalMember) *string { return &m.EffectiveName }),
		},
		New: func() *LocalMember { return &LocalMember{} },
	}
}

// MessageInfo records a message seen in a guild. Its own columns are exposed
// through accessor methods rather than exported fields.
type MessageInfo struct {
	Guild
	messageID int64
	userID    int64
	content   string
	timestamp time.Time
}

// NewMessageInfo builds a MessageInfo for a message not yet persisted.
func NewMessageInfo(guildID, messageID, userID int64, content string, at time.Time) *MessageInfo {
	m := &MessageInfo{}
	m.GuildID = guildID
	m.SetMessageID(messageID)
	m.SetUserID(userID)
	m.SetContent(content)
	m.SetTimestamp(at)
	return m
}

func (m *MessageInfo) MessageID() int64          { return m.messageID }
func (m *MessageInfo) SetMessageID(id int64)     { m.messageID = id }
func (m *MessageInfo) UserID() int64             { return m.userID }
func (m *MessageInfo) SetUserID(id int64)        { m.userID = id }
func (m *MessageInfo) Content() string           { return m.content }
func (m *MessageInfo) SetContent(content string) { m.content = content }
func (m *MessageInfo) Timestamp() time.Time      { return m.timestamp }

// SetTimestamp stores t in UTC.
func (m *MessageInfo) SetTimestamp(t time.Time) { m.timestamp = t.UTC() }

// Clone returns a copy.
func (m *MessageInfo) Clone() *MessageInfo {
	out := *m
	return &out
}

// MessageInfoSchema maps MessageInfo to message_info through its accessors.
func MessageInfoSchema() entity.Schema[MessageInfo] {
	return entity.Schema[MessageInfo]{
		Name:   "MessageInfo",
		Entity: true,
		Table:  TableMessageInfo,
		Super:  guildTrait(func(m *MessageInfo) *Guild { return &m.Guild }),
		Methods: []entity.Column[MessageInfo]{
			entity.Accessor("message_id", (*MessageInfo).MessageID, (*MessageInfo).SetMessageID, entity.Col),
			entity.Accessor("user_id", (*MessageInfo).UserID, (*MessageInfo).SetUserID, entity.Col),
			entity.Accessor("content", (*MessageInfo).Content, (*MessageInfo).SetContent, entity.Col),
			entity.Accessor("timestamp", (*MessageInfo).Timestamp, (*MessageInfo).SetTimestamp, entity.Col),
		},
		New: func() *MessageInfo { return &MessageInfo{} },
	}
}
