// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/canonical/structair/internal/typeinfo"
)

// M is a convenience map type. As an output argument it collects result
// columns by name; as an input argument it rebinds the statement's named
// parameters. M is not special: any map type with string keys works the
// same way.
//
// Example:
//     stmt := structair.SelectFrom("people",
//         structair.Column("name", structair.String),
//     ).Where(structair.Eq(
//         structair.Column("id", structair.Int64), structair.Param("id", 0),
//     )).MustBuild()
//     m := structair.M{}
//     err := db.Query(ctx, stmt, structair.M{"id": 10}).Get(m)
type M map[string]any

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

// stmtCache stores the driver prepared statements associated with Statement
// values.
var stmtCache = newStatementCache()

// DB wraps a database handle so that compiled statements can be run on it.
type DB struct {
	// cacheID is used to look up the cached driver prepared statements
	// prepared on this database.
	cacheID uint64
	// sqldb is the underlying database/sql DB object.
	sqldb *sql.DB
}

// NewDB wraps a sql.DB.
func NewDB(sqldb *sql.DB) *DB {
	if sqldb == nil {
		return nil
	}
	return stmtCache.newDB(sqldb)
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Query represents a statement bound to a database. It is designed to be
// run once.
type Query struct {
	// run executes the query against the DB or the TX.
	run     func(context.Context) (*sql.Rows, sql.Result, error)
	ctx     context.Context
	err     error
	outputs bool
}

// Iterator is used to iterate over the results of a query.
type Iterator struct {
	rows    *sql.Rows
	cols    []string
	err     error
	result  sql.Result
	started bool
}

// Query binds a statement to the database. The optional input arguments
// rebind the statement's parameter values by name: maps with string keys
// and sql.NamedArg values are accepted. The query runs on the database when
// one of [Query.Iter], [Query.Run], [Query.Get] or [Query.GetAll] is
// executed.
func (db *DB) Query(ctx context.Context, s *Statement, inputArgs ...any) *Query {
	if ctx == nil {
		ctx = context.Background()
	}

	params, err := s.bindInputs(inputArgs...)
	if err != nil {
		return &Query{ctx: ctx, err: err}
	}

	run := func(innerCtx context.Context) (rows *sql.Rows, result sql.Result, err error) {
		sqlstmt, ok := stmtCache.lookupStmt(db, s)
		if !ok {
			sqlstmt, err = stmtCache.driverPrepareStmt(innerCtx, db, s)
			if err != nil {
				return nil, nil, err
			}
		}

		if s.outputs {
			rows, err = sqlstmt.QueryContext(innerCtx, params...)
		} else {
			result, err = sqlstmt.ExecContext(innerCtx, params...)
		}
		return rows, result, err
	}

	return &Query{run: run, ctx: ctx, outputs: s.outputs}
}

// bindInputs merges query time parameter values into the statement's
// parameters. Only parameters already bound in the statement can be
// rebound; the statement's SQL is fixed.
func (s *Statement) bindInputs(inputArgs ...any) ([]any, error) {
	params := s.Params()
	if len(inputArgs) == 0 {
		return params, nil
	}
	byName := make(map[string]int, len(params))
	for i, p := range params {
		if named, ok := p.(sql.NamedArg); ok {
			byName[named.Name] = i
		}
	}
	rebind := func(name string, value any) error {
		i, ok := byName[name]
		if !ok {
			return fmt.Errorf("cannot bind %q: parameter not in statement", name)
		}
		params[i] = sql.Named(name, value)
		return nil
	}
	for _, arg := range inputArgs {
		switch arg := arg.(type) {
		case sql.NamedArg:
			if err := rebind(arg.Name, arg.Value); err != nil {
				return nil, err
			}
		case M:
			for name, value := range arg {
				if err := rebind(name, value); err != nil {
					return nil, err
				}
			}
		case map[string]any:
			for name, value := range arg {
				if err := rebind(name, value); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("cannot use %T as input argument, need map or sql.NamedArg", arg)
		}
	}
	return params, nil
}

// Run runs a query on the database and disregards any results. Run is an
// alias for [Query.Get] that takes no arguments.
func (q *Query) Run() error {
	return q.Get()
}

// Get runs the query and decodes the first row returned into the provided
// output arguments. It returns [ErrNoRows] if the query selects columns but
// no rows were found.
//
// A pointer to an empty [Outcome] struct may be provided as the first
// output variable to fill it with information about the query execution.
func (q *Query) Get(outputArgs ...any) error {
	if q.err != nil {
		return q.err
	}
	var outcome *Outcome
	if len(outputArgs) > 0 {
		if oc, ok := outputArgs[0].(*Outcome); ok {
			outcome = oc
			outputArgs = outputArgs[1:]
		}
	}
	if !q.outputs && len(outputArgs) > 0 {
		return fmt.Errorf("cannot get results: output variables provided but query selects no columns")
	}

	var err error
	iter := q.Iter()
	if outcome != nil {
		err = iter.Get(outcome)
	}
	if err == nil && !iter.Next() {
		err = iter.Close()
		if err == nil && q.outputs {
			err = ErrNoRows
		}
		return err
	}
	if err == nil && len(outputArgs) > 0 {
		err = iter.Get(outputArgs...)
	}
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return err
}

// Iter returns an [Iterator] to iterate through the results row by row.
// [Iterator.Close] must be run once iteration is finished.
func (q *Query) Iter() *Iterator {
	if q.err != nil {
		return &Iterator{err: q.err}
	}

	var cols []string
	rows, result, err := q.run(q.ctx)
	if q.outputs && err == nil {
		cols, err = rows.Columns()
	}
	if err != nil {
		return &Iterator{err: err}
	}

	return &Iterator{rows: rows, cols: cols, result: result}
}

// Next prepares the next row for [Iterator.Get]. If an error occurs during
// iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Get decodes the result from the previous [Iterator.Next] call into the
// provided output arguments.
//
// Before the first call of [Iterator.Next] a pointer to an empty [Outcome]
// struct may be passed to Get as the only argument to fill it with
// information about the query execution.
func (iter *Iterator) Get(outputArgs ...any) (err error) {
	if iter.err != nil {
		return iter.err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get result: %s", err)
		}
	}()

	if !iter.started {
		if len(outputArgs) == 1 {
			if oc, ok := outputArgs[0].(*Outcome); ok {
				oc.result = iter.result
				return nil
			}
		}
		return fmt.Errorf("cannot call Get before Next unless getting outcome")
	}

	if iter.rows == nil {
		return fmt.Errorf("iteration ended")
	}

	ptrs, onSuccess, err := typeinfo.ScanArgs(iter.cols, outputArgs)
	if err != nil {
		return err
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		return err
	}
	onSuccess()
	return nil
}

// Close finishes the iteration and returns any errors encountered. Close
// can be called multiple times on the [Iterator] and the same error will be
// returned.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Close()
	iter.rows = nil
	if iter.err != nil {
		return iter.err
	}
	return err
}

// Outcome holds metadata about executed queries. It can be provided as the
// first output argument to any of the Get methods to populate it with
// information about the query execution.
type Outcome struct {
	result sql.Result
}

// Result returns a [sql.Result] containing information about the query
// execution. If no result is set then Result returns nil.
func (o *Outcome) Result() sql.Result {
	return o.result
}

// GetAll iterates over the query and scans all rows into the provided
// slices. sliceArgs must contain pointers to slices of each of the output
// types. A pointer to an empty [Outcome] struct may be provided as the
// first output variable to get information about the query execution.
//
// [ErrNoRows] will be returned if no rows are found.
func (q *Query) GetAll(sliceArgs ...any) (err error) {
	if q.err != nil {
		return q.err
	}

	if len(sliceArgs) > 0 {
		if outcome, ok := sliceArgs[0].(*Outcome); ok {
			outcome.result = nil
			sliceArgs = sliceArgs[1:]
		}
	}
	if !q.outputs && len(sliceArgs) > 0 {
		return fmt.Errorf("cannot get results: output variables provided but query selects no columns")
	}

	// Check slice inputs are valid using reflection.
	var slicePtrVals = []reflect.Value{}
	var sliceVals = []reflect.Value{}
	for _, ptr := range sliceArgs {
		ptrVal := reflect.ValueOf(ptr)
		if ptrVal.Kind() != reflect.Pointer {
			return fmt.Errorf("need pointer to slice, got %s", ptrVal.Kind())
		}
		if ptrVal.IsNil() {
			return fmt.Errorf("need pointer to slice, got nil")
		}
		slicePtrVals = append(slicePtrVals, ptrVal)
		sliceVal := ptrVal.Elem()
		if sliceVal.Kind() != reflect.Slice {
			return fmt.Errorf("need pointer to slice, got pointer to %s", sliceVal.Kind())
		}
		sliceVals = append(sliceVals, sliceVal)
	}

	// Iterate over the query results.
	rowsReturned := false
	iter := q.Iter()
	for iter.Next() {
		rowsReturned = true
		var outputArgs = []any{}
		for _, sliceVal := range sliceVals {
			elemType := sliceVal.Type().Elem()
			var outputArg reflect.Value
			switch elemType.Kind() {
			case reflect.Pointer:
				if elemType.Elem().Kind() != reflect.Struct {
					iter.Close()
					return fmt.Errorf("need slice of structs/maps, got slice of pointer to %s", elemType.Elem().Kind())
				}
				outputArg = reflect.New(elemType.Elem())
			case reflect.Struct:
				outputArg = reflect.New(elemType)
			case reflect.Map:
				outputArg = reflect.MakeMap(elemType)
			default:
				iter.Close()
				return fmt.Errorf("need slice of structs/maps, got slice of %s", elemType.Kind())
			}
			outputArgs = append(outputArgs, outputArg.Interface())
		}
		if err := iter.Get(outputArgs...); err != nil {
			iter.Close()
			return err
		}
		for i, outputArg := range outputArgs {
			switch k := sliceVals[i].Type().Elem().Kind(); k {
			case reflect.Pointer, reflect.Map:
				sliceVals[i] = reflect.Append(sliceVals[i], reflect.ValueOf(outputArg))
			case reflect.Struct:
				sliceVals[i] = reflect.Append(sliceVals[i], reflect.ValueOf(outputArg).Elem())
			default:
				iter.Close()
				return fmt.Errorf("internal error: output arg has unexpected kind %s", k)
			}
		}
	}
	err = iter.Close()
	if err != nil {
		return err
	} else if !rowsReturned && q.outputs {
		return ErrNoRows
	}

	for i, ptrVal := range slicePtrVals {
		ptrVal.Elem().Set(sliceVals[i])
	}

	return nil
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended with a
// [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level. If zero, the driver
	// or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Query binds a statement to the transaction, like [DB.Query]. The query
// runs on the database when one of [Query.Iter], [Query.Run], [Query.Get]
// or [Query.GetAll] is executed.
func (tx *TX) Query(ctx context.Context, s *Statement, inputArgs ...any) *Query {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx.isDone() {
		return &Query{ctx: ctx, err: ErrTXDone}
	}

	params, err := s.bindInputs(inputArgs...)
	if err != nil {
		return &Query{ctx: ctx, err: err}
	}

	run := func(innerCtx context.Context) (rows *sql.Rows, result sql.Result, err error) {
		sqlstmt, ok := stmtCache.lookupStmt(tx.db, s)
		if ok {
			// Register the prepared statement on the transaction. This
			// does not re-prepare the statement on the driver. The txstmt
			// is closed by database/sql when the transaction is committed
			// or rolled back.
			txstmt := tx.sqltx.Stmt(sqlstmt)
			if s.outputs {
				rows, err = txstmt.QueryContext(innerCtx, params...)
			} else {
				result, err = txstmt.ExecContext(innerCtx, params...)
			}
			return rows, result, err
		}

		if s.outputs {
			rows, err = tx.sqltx.QueryContext(innerCtx, s.sql, params...)
		} else {
			result, err = tx.sqltx.ExecContext(innerCtx, s.sql, params...)
		}
		return rows, result, err
	}

	return &Query{run: run, ctx: ctx, outputs: s.outputs}
}
