// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"sync/atomic"
)

// stmtIDCount and dbIDCount generate the unique cache IDs carried by
// Statement and DB values.
var stmtIDCount uint64
var dbIDCount uint64

// statementCache caches the sql.Stmt prepared for each (Statement, DB)
// pair. One Statement can be prepared on any number of databases.
//
// Entries are dropped by finalizers: collecting a Statement closes its
// sql.Stmt on every database, collecting a DB closes every sql.Stmt
// prepared on it along with the database handle itself.
//
// mutex must be held when accessing either map.
type statementCache struct {
	// stmtsByDB indexes prepared statements by Statement ID then DB ID.
	// dbStmts records which statements each DB has prepared.
	stmtsByDB map[uint64]map[uint64]*sql.Stmt
	dbStmts   map[uint64]map[uint64]bool
	mutex     sync.RWMutex
}

var cacheOnce sync.Once
var cacheInstance *statementCache

// newStatementCache returns the single instance of the statement cache.
func newStatementCache() *statementCache {
	cacheOnce.Do(func() {
		cacheInstance = &statementCache{
			stmtsByDB: map[uint64]map[uint64]*sql.Stmt{},
			dbStmts:   map[uint64]map[uint64]bool{},
		}
	})
	return cacheInstance
}

// newStatement registers a compiled statement with the cache.
func newStatement(sqlText string, params []any, outputs bool) *Statement {
	return stmtCache.newStatement(sqlText, params, outputs)
}

// newStatement builds a Statement over the compiled SQL and allocates its
// row in the cache. The finalizer runs once the Statement is garbage
// collected and closes the driver statements prepared from it.
func (sc *statementCache) newStatement(sqlText string, params []any, outputs bool) *Statement {
	s := &Statement{
		cacheID: atomic.AddUint64(&stmtIDCount, 1),
		sql:     sqlText,
		params:  params,
		outputs: outputs,
	}
	sc.mutex.Lock()
	sc.stmtsByDB[s.cacheID] = map[uint64]*sql.Stmt{}
	sc.mutex.Unlock()
	runtime.SetFinalizer(s, sc.statementFinalizer)
	return s
}

// newDB wraps the database handle and allocates its row in the cache. The
// finalizer runs once the DB is garbage collected; it closes every driver
// statement prepared on the DB and then the DB itself.
func (sc *statementCache) newDB(sqldb *sql.DB) *DB {
	db := &DB{cacheID: atomic.AddUint64(&dbIDCount, 1), sqldb: sqldb}
	sc.mutex.Lock()
	sc.dbStmts[db.cacheID] = map[uint64]bool{}
	sc.mutex.Unlock()
	runtime.SetFinalizer(db, sc.dbFinalizer)
	return db
}

// lookupStmt fetches the driver statement prepared for s on db, if there is
// one. The Statement is alive, so its finalizer has not run and its row in
// stmtsByDB is present.
func (sc *statementCache) lookupStmt(db *DB, s *Statement) (*sql.Stmt, bool) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	sqlstmt, ok := sc.stmtsByDB[s.cacheID][db.cacheID]
	return sqlstmt, ok
}

// driverPrepareStmt prepares s on db and caches the result. If another
// goroutine prepared the same statement in the meantime, its statement is
// kept and ours is closed.
func (sc *statementCache) driverPrepareStmt(ctx context.Context, db *DB, s *Statement) (*sql.Stmt, error) {
	sqlstmt, err := db.sqldb.PrepareContext(ctx, s.sql)
	if err != nil {
		return nil, err
	}
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if prev, ok := sc.stmtsByDB[s.cacheID][db.cacheID]; ok {
		sqlstmt.Close()
		return prev, nil
	}
	sc.stmtsByDB[s.cacheID][db.cacheID] = sqlstmt
	sc.dbStmts[db.cacheID][s.cacheID] = true
	return sqlstmt, nil
}

// statementFinalizer closes the driver statements prepared from a collected
// Statement and removes them from the cache.
func (sc *statementCache) statementFinalizer(s *Statement) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	for dbCacheID, sqlstmt := range sc.stmtsByDB[s.cacheID] {
		sqlstmt.Close()
		delete(sc.dbStmts[dbCacheID], s.cacheID)
	}
	delete(sc.stmtsByDB, s.cacheID)
}

// dbFinalizer closes every driver statement prepared on a collected DB,
// removes the DB from the cache and closes the underlying handle.
func (sc *statementCache) dbFinalizer(db *DB) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	for stmtCacheID := range sc.dbStmts[db.cacheID] {
		byDB := sc.stmtsByDB[stmtCacheID]
		byDB[db.cacheID].Close()
		delete(byDB, db.cacheID)
	}
	delete(sc.dbStmts, db.cacheID)
	db.sqldb.Close()
}
