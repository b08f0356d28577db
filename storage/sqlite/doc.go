// Package sqlite provides a SQLite storage backend built on the pure-Go
// modernc.org/sqlite driver.
//
// The schema lives in embedded golang-migrate migrations that New applies on
// open. Expired rows stay in the database until DeleteExpired removes them;
// the server runs it on a ticker.
//
//	store, err := sqlite.New(sqlite.Config{DSN: "file:oauth2.db"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package sqlite
