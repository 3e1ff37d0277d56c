// Package storage groups the persistence backends of warden.
//
//   - storage/postgres: the system of record for organizations, members,
//     policies, users and secrets manager resources, through lib/pq.
//   - storage/postgres also holds the Redis organization ability cache,
//     through go-redis.
//
// Repositories implement the interfaces declared next to the services that
// consume them (pkg/orgs, pkg/secrets). Single-row lookups return nil, nil
// when nothing matches.
package storage
