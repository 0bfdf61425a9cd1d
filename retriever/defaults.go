package retriever

import "time"

// Defaults seeds the entities CreateX builds.
type Defaults struct {
	Prefix          string
	Locale          string
	Timezone        string
	MaxWarnings     int64
	MuteBaseDelay   time.Duration
	WarnExpireDelay time.Duration
}

// DefaultSettings returns the stock defaults.
func DefaultSettings() Defaults {
	return Defaults{
		Prefix:          "$",
		Locale:          "en",
		Timezone:        "UTC",
		MaxWarnings:     3,
		MuteBaseDelay:   10 * time.Minute,
		WarnExpireDelay: 24 * time.Hour,
	}
}

func (d Defaults) guildConfig(guildID int64) *GuildConfig {
	c := &GuildConfig{Locale: d.Locale, Timezone: d.Timezone}
	c.GuildID = guildID
	if d.Prefix != "" {
		c.Prefixes = Prefixes{d.Prefix}
	}
	return c
}

func (d Defaults) adminConfig(guildID int64) *AdminConfig {
	c := &AdminConfig{
		MaxWarnCount:    d.MaxWarnings,
		MuteBaseDelay:   d.MuteBaseDelay,
		WarnExpireDelay: d.WarnExpireDelay,
	}
	c.GuildID = guildID
	return c
}
