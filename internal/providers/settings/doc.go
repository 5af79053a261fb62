/*
Package settings persists the user's detection settings.

Two keys matter to the detection layer:

	isEnabled           bool      protection toggle, false on first install
	userWhitelistHosts  []string  hosts the user trusts

Values are stored as JSON documents in a Store. MemoryStore keeps them in
process memory; SQLiteStore persists them with migrations tracked through
PRAGMA user_version. Both push every committed change to their watchers.

Mirror subscribes to a store and keeps typed copies of both keys so hot
paths never touch storage:

	store, err := settings.OpenSQLite(ctx, path, logger)
	mirror, err := settings.NewMirror(ctx, store, logger)
	err = mirror.Install(ctx)
	mirror.OnChange(func(s settings.Snapshot) { resolver.SetUserHosts(s.WhitelistHosts) })
*/
package settings
