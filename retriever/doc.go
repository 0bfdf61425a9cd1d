// Package retriever is the application's only path to persisted state.
//
// It declares the entity kinds (GuildConfig, AdminConfig, AuditConfig,
// LocalMember and MessageInfo) as explicit schemas built from two shared
// traits: Base contributes the generated id column and GuildScoped the
// guild_id column. Store implements EntityRetriever with one repository per
// kind and looks rows up by their natural key rather than the row id.
//
// Reads report absence as (nil, false, nil). The CreateX calls persist a new
// entity seeded from Defaults and return it with its id assigned.
//
// Wrap a Store with retrievercache.New to serve repeated reads from memory.
package retriever
