package retrievercache

import (
	"context"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/cache"
	"github.com/goliatone/go-entity-retriever/retriever"
)

// TextCodeMissingPartition tags a Retriever built without a cache for some kind.
const TextCodeMissingPartition = "MISSING_PARTITION"

// Interface assertion to ensure Retriever can stand in for the base retriever.
var _ retriever.EntityRetriever = (*Retriever)(nil)

// Retriever decorates an EntityRetriever with one cache partition per kind.
type Retriever struct {
	base retriever.EntityRetriever

	guilds   *partition[retriever.GuildConfig]
	admins   *partition[retriever.AdminConfig]
	audits   *partition[retriever.AuditConfig]
	members  *partition[retriever.LocalMember]
	messages *partition[retriever.MessageInfo]
}

type options struct {
	keys   cache.KeySerializer
	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*options)

// WithLogger sets the logger used for hit, miss and populate events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(s cache.KeySerializer) Option {
	return func(o *options) {
		if s != nil {
			o.keys = s
		}
	}
}

// New wraps base. Every kind needs a partition in services.
func New(base retriever.EntityRetriever, services Services, opts ...Option) (*Retriever, error) {
	if base == nil {
		return nil, errors.New("base retriever is required", errors.CategoryBadInput)
	}
	o := options{keys: cache.NewDefaultKeySerializer(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	for _, p := range []struct {
		kind string
		svc  cache.CacheService
	}{
		{"GuildConfig", services.GuildConfig},
		{"AdminConfig", services.AdminConfig},
		{"AuditConfig", services.AuditConfig},
		{"LocalMember", services.LocalMember},
		{"MessageInfo", services.MessageInfo},
	} {
		if p.svc == nil {
			return nil, errors.New("no cache partition for "+p.kind, errors.CategoryBadInput).
				WithTextCode(TextCodeMissingPartition).
				WithMetadata(map[string]any{"kind": p.kind})
		}
	}

	return &Retriever{
		base:     base,
		guilds:   newPartition("GuildConfig", services.GuildConfig, o.keys, (*retriever.GuildConfig).Clone, o.logger),
		admins:   newPartition("AdminConfig", services.AdminConfig, o.keys, (*retriever.AdminConfig).Clone, o.logger),
		audits:   newPartition("AuditConfig", services.AuditConfig, o.keys, (*retriever.AuditConfig).Clone, o.logger),
		members:  newPartition("LocalMember", services.LocalMember, o.keys, (*retriever.LocalMember).Clone, o.logger),
		messages: newPartition("MessageInfo", services.MessageInfo, o.keys, (*retriever.MessageInfo).Clone, o.logger),
	}, nil
}

// Base returns the decorated retriever.
func (r *Retriever) Base() retriever.EntityRetriever { return r.base }

func (r *Retriever) GetGuildConfigByID(ctx context.Context, guildID int64) (*retriever.GuildConfig, bool, error) {
	return r.guilds.get(ctx, r.guilds.key(guildID), func(ctx context.Context) (*retriever.GuildConfig, bool, error) {
		return r.base.GetGuildConfigByID(ctx, guildID)
	})
}

func (r *Retriever) CreateGuildConfig(ctx context.Context, guildID int64) (*retriever.GuildConfig, error) {
	c, err := r.base.CreateGuildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return c, r.guilds.put(ctx, r.guilds.key(c.GuildID), c)
}

func (r *Retriever) SaveGuildConfig(ctx context.Context, c *retriever.GuildConfig) error {
	if err := r.base.SaveGuildConfig(ctx, c); err != nil {
		return err
	}
	return r.guilds.put(ctx, r.guilds.key(c.GuildID), c)
}

func (r *Retriever) DeleteGuildConfig(ctx context.Context, c *retriever.GuildConfig) error {
	if err := r.base.DeleteGuildConfig(ctx, c); err != nil {
		return err
	}
	return r.guilds.evict(ctx, r.guilds.key(c.GuildID))
}

func (r *Retriever) GetAdminConfigByID(ctx context.Context, guildID int64) (*retriever.AdminConfig, bool, error) {
	return r.admins.get(ctx, r.admins.key(guildID), func(ctx context.Context) (*retriever.AdminConfig, bool, error) {
		return r.base.GetAdminConfigByID(ctx, guildID)
	})
}

func (r *Retriever) CreateAdminConfig(ctx context.Context, guildID int64) (*retriever.AdminConfig, error) {
	c, err := r.base.CreateAdminConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return c, r.admins.put(ctx, r.admins.key(c.GuildID), c)
}

func (r *Retriever) SaveAdminConfig(ctx context.Context, c *retriever.AdminConfig) error {
	if err := r.base.SaveAdminConfig(ctx, c); err != nil {
		return err
	}
	return r.admins.put(ctx, r.admins.key(c.GuildID), c)
}

func (r *Retriever) DeleteAdminConfig(ctx context.Context, c *retriever.AdminConfig) error {
	if err := r.base.DeleteAdminConfig(ctx, c); err != nil {
		return err
	}
	return r.admins.evict(ctx, r.admins.key(c.GuildID))
}

func (r *Retriever) GetAuditConfigByID(ctx context.Context, guildID int64) (*retriever.AuditConfig, bool, error) {
	return r.audits.get(ctx, r.audits.key(guildID), func(ctx context.Context) (*retriever.AuditConfig, bool, error) {
		return r.base.GetAuditConfigByID(ctx, guildID)
	})
}

func (r *Retriever) CreateAuditConfig(ctx context.Context, guildID int64) (*retriever.AuditConfig, error) {
	c, err := r.base.CreateAuditConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return c, r.audits.put(ctx, r.audits.key(c.GuildID), c)
}

func (r *Retriever) SaveAuditConfig(ctx context.Context, c *retriever.AuditConfig) error {
	if err := r.base.SaveAuditConfig(ctx, c); err != nil {
		return err
	}
	return r.audits.put(ctx, r.audits.key(c.GuildID), c)
}

func (r *Retriever) DeleteAuditConfig(ctx context.Context, c *retriever.AuditConfig) error {
	if err := r.base.DeleteAuditConfig(ctx, c); err != nil {
		return err
	}
	return r.audits.evict(ctx, r.audits.key(c.GuildID))
}

func (r *Retriever) GetLocalMemberByID(ctx context.Context, userID, guildID int64) (*retriever.LocalMember, bool, error) {
	return r.members.get(ctx, r.members.key(userID, guildID), func(ctx context.Context) (*retriever.LocalMember, bool, error) {
		return r.base.GetLocalMemberByID(ctx, userID, guildID)
	})
}

func (r *Retriever) CreateLocalMember(ctx context.Context, userID, guildID int64, effectiveName string) (*retriever.LocalMember, error) {
	m, err := r.base.CreateLocalMember(ctx, userID, guildID, effectiveName)
	if err != nil {
		return nil, err
	}
	return m, r.members.put(ctx, r.members.key(m.UserID, m.GuildID), m)
}

func (r *Retriever) SaveLocalMember(ctx context.Context, m *retriever.LocalMember) error {
	if err := r.base.SaveLocalMember(ctx, m); err != nil {
		return err
	}
	return r.members.put(ctx, r.members.key(m.UserID, m.GuildID), m)
}

func (r *Retriever) DeleteLocalMember(ctx context.Context, m *retriever.LocalMember) error {
	if err := r.base.DeleteLocalMember(ctx, m); err != nil {
		return err
	}
	return r.members.evict(ctx, r.members.key(m.UserID, m.GuildID))
}

func (r *Retriever) GetMessageInfoByID(ctx context.Context, messageID int64) (*retriever.MessageInfo, bool, error) {
	return r.messages.get(ctx, r.messages.key(messageID), func(ctx context.Context) (*retriever.MessageInfo, bool, error) {
		return r.base.GetMessageInfoByID(ctx, messageID)
	})
}

func (r *Retriever) CreateMessageInfo(ctx context.Context, m *retriever.MessageInfo) (*retriever.MessageInfo, error) {
	saved, err := r.base.CreateMessageInfo(ctx, m)
	if err != nil {
		return nil, err
	}
	return saved, r.messages.put(ctx, r.messages.key(saved.MessageID()), saved)
}

func (r *Retriever) SaveMessageInfo(ctx context.Context, m *retriever.MessageInfo) error {
	if err := r.base.SaveMessageInfo(ctx, m); err != nil {
		return err
	}
	return r.messages.put(ctx, r.messages.key(m.MessageID()), m)
}

func (r *Retriever) DeleteMessageInfo(ctx context.Context, m *retriever.MessageInfo) error {
	if err := r.base.DeleteMessageInfo(ctx, m); err != nil {
		return err
	}
	return r.messages.evict(ctx, r.messages.key(m.MessageID()))
}
