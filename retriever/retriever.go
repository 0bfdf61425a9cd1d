package retriever

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/repository"
)

// TextCodeNilEntity tags calls made with a nil entity.
const TextCodeNilEntity = "NIL_ENTITY"

// EntityRetriever is the only way the application reaches persisted state.
// Reads return (nil, false, nil) when nothing is stored under the key.
type EntityRetriever interface {
	GetGuildConfigByID(ctx context.Context, guildID int64) (*GuildConfig, bool, error)
	CreateGuildConfig(ctx context.Context, guildID int64) (*GuildConfig, error)
	SaveGuildConfig(ctx context.Context, c *GuildConfig) error
	DeleteGuildConfig(ctx context.Context, c *GuildConfig) error

	GetAdminConfigByID(ctx context.Context, guildID int64) (*AdminConfig, bool, error)
	CreateAdminConfig(ctx context.Context, guildID int64) (*AdminConfig, error)
	SaveAdminConfig(ctx context.Context, c *AdminConfig) error
	DeleteAdminConfig(ctx context.Context, c *AdminConfig) error

	GetAuditConfigByID(ctx context.Context, guildID int64) (*AuditConfig, bool, error)
	CreateAuditConfig(ctx context.Context, guildID int64) (*AuditConfig, error)
	SaveAuditConfig(ctx context.Context, c *AuditConfig) error
	DeleteAuditConfig(ctx context.Context, c *AuditConfig) error

	GetLocalMemberByID(ctx context.Context, userID, guildID int64) (*LocalMember, bool, error)
	CreateLocalMember(ctx context.Context, userID, guildID int64, effectiveName string) (*LocalMember, error)
	SaveLocalMember(ctx context.Context, m *LocalMember) error
	DeleteLocalMember(ctx context.Context, m *LocalMember) error

	GetMessageInfoByID(ctx context.Context, messageID int64) (*MessageInfo, bool, error)
	CreateMessageInfo(ctx context.Context, m *MessageInfo) (*MessageInfo, error)
	SaveMessageInfo(ctx context.Context, m *MessageInfo) error
	DeleteMessageInfo(ctx context.Context, m *MessageInfo) error
}

// Store implements EntityRetriever directly over repositories.
type Store struct {
	defaults Defaults
	logger   *zap.Logger

	guilds   *repository.Repository[GuildConfig]
	admins   *repository.Repository[AdminConfig]
	audits   *repository.Repository[AuditConfig]
	members  *repository.Repository[LocalMember]
	messages *repository.Repository[MessageInfo]
}

var _ EntityRetriever = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithDefaults replaces the stock defaults used by the CreateX calls.
func WithDefaults(d Defaults) Option {
	return func(s *Store) { s.defaults = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds repositories for every kind. It fails when a schema does not
// resolve, which is a startup error.
func New(f *repository.Factory, opts ...Option) (*Store, error) {
	s := &Store{defaults: DefaultSettings(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.guilds, err = repository.New(f, GuildConfigSchema()); err != nil {
		return nil, err
	}
	if s.admins, err = repository.New(f, AdminConfigSchema()); err != nil {
		return nil, err
	}
	if s.audits, err = repository.New(f, AuditConfigSchema()); err != nil {
		return nil, err
	}
	if s.members, err = repository.New(f, LocalMemberSchema()); err != nil {
		return nil, err
	}
	if s.messages, err = repository.New(f, MessageInfoSchema()); err != nil {
		return nil, err
	}
	return s, nil
}

// Defaults returns the defaults in use.
func (s *Store) Defaults() Defaults { return s.defaults }

func (s *Store) GetGuildConfigByID(ctx context.Context, guildID int64) (*GuildConfig, bool, error) {
	return s.guilds.FindOne(ctx, map[string]any{"guild_id": guildID})
}

func (s *Store) CreateGuildConfig(ctx context.Context, guildID int64) (*GuildConfig, error) {
	c := s.defaults.guildConfig(guildID)
	if err := s.guilds.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("created entity", zap.String("kind", "GuildConfig"), zap.Int64("guild_id", guildID))
	return c, nil
}

func (s *Store) SaveGuildConfig(ctx context.Context, c *GuildConfig) error {
	return save(ctx, s.guilds, c)
}

func (s *Store) DeleteGuildConfig(ctx context.Context, c *GuildConfig) error {
	return remove(ctx, s.guilds, c)
}

func (s *Store) GetAdminConfigByID(ctx context.Context, guildID int64) (*AdminConfig, bool, error) {
	return s.admins.FindOne(ctx, map[string]any{"guild_id": guildID})
}

func (s *Store) CreateAdminConfig(ctx context.Context, guildID int64) (*AdminConfig, error) {
	c := s.defaults.adminConfig(guildID)
	if err := s.admins.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("created entity", zap.String("kind", "AdminConfig"), zap.Int64("guild_id", guildID))
	return c, nil
}

func (s *Store) SaveAdminConfig(ctx context.Context, c *AdminConfig) error {
	return save(ctx, s.admins, c)
}

func (s *Store) DeleteAdminConfig(ctx context.Context, c *AdminConfig) error {
	return remove(ctx, s.admins, c)
}

func (s *Store) GetAuditConfigByID(ctx context.Context, guildID int64) (*AuditConfig, bool, error) {
	return s.audits.FindOne(ctx, map[string]any{"guild_id": guildID})
}

func (s *Store) CreateAuditConfig(ctx context.Context, guildID int64) (*AuditConfig, error) {
	c := &AuditConfig{}
	c.GuildID = guildID
	if err := s.audits.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("created entity", zap.String("kind", "AuditConfig"), zap.Int64("guild_id", guildID))
	return c, nil
}

func (s *Store) SaveAuditConfig(ctx context.Context, c *AuditConfig) error {
	return save(ctx, s.audits, c)
}

func (s *Store) DeleteAuditConfig(ctx context.Context, c *AuditConfig) error {
	return remove(ctx, s.audits, c)
}

func (s *Store) GetLocalMemberByID(ctx context.Context, userID, guildID int64) (*LocalMember, bool, error) {
	return s.members.FindOne(ctx, map[string]any{"user_id": userID, "guild_id": guildID})
}

func (s *Store) CreateLocalMember(ctx context.Context, userID, guildID int64, effectiveName string) (*LocalMember, error) {
	m := &LocalMember{UserID: userID, EffectiveName: effectiveName}
	m.GuildID = guildID
	if err := s.members.Save(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Debug("created entity", zap.String("kind", "LocalMember"),
		zap.Int64("user_id", userID), zap.Int64("guild_id", guildID))
	return m, nil
}

func (s *Store) SaveLocalMember(ctx context.Context, m *LocalMember) error {
	return save(ctx, s.members, m)
}

func (s *Store) DeleteLocalMember(ctx context.Context, m *LocalMember) error {
	return remove(ctx, s.members, m)
}

func (s *Store) GetMessageInfoByID(ctx context.Context, messageID int64) (*MessageInfo, bool, error) {
	return s.messages.FindOne(ctx, map[string]any{"message_id": messageID})
}

// CreateMessageInfo persists a caller-built message; there are no defaults
// to apply.
func (s *Store) CreateMessageInfo(ctx context.Context, m *MessageInfo) (*MessageInfo, error) {
	if err := save(ctx, s.messages, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) SaveMessageInfo(ctx context.Context, m *MessageInfo) error {
	return save(ctx, s.messages, m)
}

func (s *Store) DeleteMessageInfo(ctx context.Context, m *MessageInfo) error {
	return remove(ctx, s.messages, m)
}

func save[T any](ctx context.Context, repo *repository.Repository[T], e *T) error {
	if e == nil {
		return nilEntity(repo, "save")
	}
	return repo.Save(ctx, e)
}

func remove[T any](ctx context.Context, repo *repository.Repository[T], e *T) error {
	if e == nil {
		return nilEntity(repo, "delete")
	}
	return repo.Delete(ctx, e)
}

func nilEntity[T any](repo *repository.Repository[T], op string) error {
	kind := repo.Metadata().Name()
	return errors.New(fmt.Sprintf("cannot %s a nil %s", op, kind), errors.CategoryBadInput).
		WithTextCode(TextCodeNilEntity).
		WithMetadata(map[string]any{"kind": kind})
}
