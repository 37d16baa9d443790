// Copyright 2025 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package structair_test

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/canonical/structair"
)

type PackageSuite struct{}

var _ = Suite(&PackageSuite{})

func setupDB() (*sql.DB, error) {
	return sql.Open("sqlite3", ":memory:")
}

func createExampleDB(createTables string, inserts []string) (*structair.DB, error) {
	sqldb, err := setupDB()
	if err != nil {
		return nil, err
	}
	if _, err := sqldb.Exec(createTables); err != nil {
		return nil, err
	}
	for _, insert := range inserts {
		if _, err := sqldb.Exec(insert); err != nil {
			return nil, err
		}
	}
	return structair.NewDB(sqldb), nil
}

func personAndAddressDB() (string, *structair.DB, error) {
	createTables := `
CREATE TABLE person (
	name text,
	id integer,
	address_id integer,
	email text
);
CREATE TABLE address (
	id integer,
	district text,
	street text
);
`
	dropTables := `
DROP TABLE person;
DROP TABLE address;
`
	inserts := []string{
		"INSERT INTO person VALUES ('Fred', 30, 1000, 'fred@email.com');",
		"INSERT INTO person VALUES ('Mark', 20, 1500, 'mark@email.com');",
		"INSERT INTO person VALUES ('Mary', 40, 3500, 'mary@email.com');",
		"INSERT INTO person VALUES ('James', 35, 4500, 'james@email.com');",
		"INSERT INTO address VALUES (1000, 'Happy Land', 'Main Street');",
		"INSERT INTO address VALUES (1500, 'Sad World', 'Church Road');",
		"INSERT INTO address VALUES (3500, 'Ambivalent Commons', 'Station Lane');",
	}
	db, err := createExampleDB(createTables, inserts)
	if err != nil {
		return "", nil, err
	}
	return dropTables, db, nil
}

// dropTables cleans up the tables created for a test. DDL has no expression
// form, so it runs on the plain database handle.
func dropTables(c *C, db *structair.DB, dropSQL string) {
	_, err := db.PlainDB().Exec(dropSQL)
	c.Assert(err, IsNil)
}

// The person and address tables as expressions.
var (
	personName      = structair.Column("name", structair.String)
	personID        = structair.Column("id", structair.Int64)
	personAddressID = structair.Column("address_id", structair.Int64)
	personEmail     = structair.Column("email", structair.String)

	addressID       = structair.Column("id", structair.Int64)
	addressDistrict = structair.Column("district", structair.String)
)

type Person struct {
	ID         int    `db:"id"`
	Fullname   string `db:"name"`
	PostalCode int    `db:"address_id"`
}

type Address struct {
	ID       int    `db:"id"`
	District string `db:"district"`
	Street   string `db:"street"`
}

// Manager carries the same column tags as Person.
type Manager Person

func selectPeople() *structair.Statement {
	return structair.SelectFrom("person", personName, personID, personAddressID).MustBuild()
}

func insertPerson(name string, id, addressID int, email string) *structair.Statement {
	return structair.InsertInto("person", "name", "id", "address_id", "email").
		Values(
			structair.Literal(name),
			structair.Literal(id),
			structair.Literal(addressID),
			structair.Literal(email),
		).
		MustBuild()
}

func (s *PackageSuite) TestValidIterGet(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	var tests = []struct {
		summary  string
		stmt     *structair.Statement
		inputs   []any
		outputs  [][]any
		expected [][]any
	}{{
		summary: "select all people into structs",
		stmt:    selectPeople(),
		outputs: [][]any{{&Person{}}, {&Person{}}, {&Person{}}, {&Person{}}},
		expected: [][]any{
			{&Person{Fullname: "Fred", ID: 30, PostalCode: 1000}},
			{&Person{Fullname: "Mark", ID: 20, PostalCode: 1500}},
			{&Person{Fullname: "Mary", ID: 40, PostalCode: 3500}},
			{&Person{Fullname: "James", ID: 35, PostalCode: 4500}},
		},
	}, {
		summary: "select all addresses into structs",
		stmt: structair.SelectFrom("address",
			addressID, addressDistrict, structair.Column("street", structair.String)).
			OrderBy(addressID).
			MustBuild(),
		outputs: [][]any{{&Address{}}, {&Address{}}, {&Address{}}},
		expected: [][]any{
			{&Address{ID: 1000, District: "Happy Land", Street: "Main Street"}},
			{&Address{ID: 1500, District: "Sad World", Street: "Church Road"}},
			{&Address{ID: 3500, District: "Ambivalent Commons", Street: "Station Lane"}},
		},
	}, {
		summary: "select with parameter",
		stmt: structair.SelectFrom("person", personName, personID, personAddressID).
			Where(structair.Eq(personID, structair.Param("id", 30))).
			MustBuild(),
		outputs:  [][]any{{&Person{}}},
		expected: [][]any{{&Person{Fullname: "Fred", ID: 30, PostalCode: 1000}}},
	}, {
		summary: "select with rebound parameter",
		stmt: structair.SelectFrom("person", personName, personID, personAddressID).
			Where(structair.Gt(personID, structair.Param("min", 0))).
			OrderBy(personID).
			MustBuild(),
		inputs:  []any{structair.M{"min": 30}},
		outputs: [][]any{{&Person{}}, {&Person{}}},
		expected: [][]any{
			{&Person{Fullname: "James", ID: 35, PostalCode: 4500}},
			{&Person{Fullname: "Mary", ID: 40, PostalCode: 3500}},
		},
	}, {
		summary: "select into struct and map",
		stmt: structair.SelectFrom("person", personName, personID, personAddressID, personEmail).
			Where(structair.Eq(personName, structair.Literal("Fred"))).
			MustBuild(),
		outputs: [][]any{{&Person{}, structair.M{}}},
		expected: [][]any{{
			&Person{Fullname: "Fred", ID: 30, PostalCode: 1000},
			structair.M{"email": "fred@email.com"},
		}},
	}, {
		summary: "select labelled column into map",
		stmt: structair.SelectFrom("address", structair.Label(addressDistrict, "area")).
			Where(structair.Eq(addressID, structair.Literal(1000))).
			MustBuild(),
		outputs:  [][]any{{structair.M{}}},
		expected: [][]any{{structair.M{"area": "Happy Land"}}},
	}, {
		summary: "select aggregate into map",
		stmt: structair.SelectFrom("person",
			structair.Label(structair.Func("count", structair.Int64, structair.Star), "n")).
			MustBuild(),
		outputs:  [][]any{{structair.M{}}},
		expected: [][]any{{structair.M{"n": int64(4)}}},
	}}

	for _, t := range tests {
		iter := db.Query(nil, t.stmt, t.inputs...).Iter()
		i := 0
		for iter.Next() {
			if i >= len(t.outputs) {
				c.Fatalf("\ntest %q failed (Next):\nmore rows returned than expected (%d)", t.summary, len(t.outputs))
			}
			c.Assert(iter.Get(t.outputs[i]...), IsNil, Commentf("\ntest %q failed (Get)", t.summary))
			i++
		}
		c.Assert(iter.Close(), IsNil, Commentf("\ntest %q failed (Close)", t.summary))
		c.Assert(i, Equals, len(t.outputs), Commentf("\ntest %q failed (row count)", t.summary))
		for i, row := range t.expected {
			for j, want := range row {
				c.Assert(t.outputs[i][j], DeepEquals, want, Commentf("\ntest %q failed (row %d)", t.summary, i))
			}
		}
	}

	dropTables(c, db, drop)
}

type NoTags struct {
	X int
}

type badMap map[int]string

func (s *PackageSuite) TestIterGetErrors(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	selectNameEmail := structair.SelectFrom("person", personName, personEmail).MustBuild()
	selectID := structair.SelectFrom("person", personID).MustBuild()

	var nilPerson *Person
	var nilMap structair.M
	var i int
	var tests = []struct {
		summary string
		stmt    *structair.Statement
		outputs []any
		err     string
	}{{
		summary: "column tagged in two structs",
		stmt:    selectID,
		outputs: []any{&Person{}, &Manager{}},
		err:     `cannot get result: cannot scan column "id": tagged in both struct "Person" and struct "Manager"`,
	}, {
		summary: "column with no destination",
		stmt:    selectNameEmail,
		outputs: []any{&Person{}},
		err:     `cannot get result: cannot scan column "email": no output argument takes it`,
	}, {
		summary: "unused output argument",
		stmt:    selectPeople(),
		outputs: []any{&Person{}, &emailHolder{}},
		err:     `cannot get result: struct "emailHolder" not referenced by any result column`,
	}, {
		summary: "nil output",
		stmt:    selectPeople(),
		outputs: []any{nil},
		err:     "cannot get result: need valid output argument, got nil",
	}, {
		summary: "nil struct pointer",
		stmt:    selectPeople(),
		outputs: []any{nilPerson},
		err:     "cannot get result: need valid output argument, got nil pointer",
	}, {
		summary: "nil map",
		stmt:    selectPeople(),
		outputs: []any{nilMap},
		err:     "cannot get result: need valid output argument, got nil map",
	}, {
		summary: "struct not passed as pointer",
		stmt:    selectPeople(),
		outputs: []any{Person{}},
		err:     "cannot get result: need map or pointer to struct, got struct",
	}, {
		summary: "pointer to non-struct",
		stmt:    selectPeople(),
		outputs: []any{&i},
		err:     "cannot get result: need pointer to struct, got pointer to int",
	}, {
		summary: "plain value",
		stmt:    selectPeople(),
		outputs: []any{42},
		err:     "cannot get result: need map or pointer to struct, got int",
	}, {
		summary: "two maps",
		stmt:    selectPeople(),
		outputs: []any{structair.M{}, structair.M{}},
		err:     "cannot get result: cannot use more than one map output argument",
	}, {
		summary: "map with non-string keys",
		stmt:    selectPeople(),
		outputs: []any{badMap{}},
		err:     "cannot get result: map type badMap must have key type string, found type int",
	}, {
		summary: "struct without db tags",
		stmt:    selectPeople(),
		outputs: []any{&NoTags{}},
		err:     `cannot get result: no "db" tags found in struct NoTags`,
	}}

	for _, t := range tests {
		iter := db.Query(nil, t.stmt).Iter()
		c.Assert(iter.Next(), Equals, true, Commentf("\ntest %q failed (Next)", t.summary))
		err := iter.Get(t.outputs...)
		c.Assert(err, ErrorMatches, t.err, Commentf("\ntest %q failed", t.summary))
		c.Assert(iter.Close(), IsNil, Commentf("\ntest %q failed (Close)", t.summary))
	}

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestValidGet(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personID, structair.Param("id", 30))).
		MustBuild()

	var p Person
	c.Assert(db.Query(nil, stmt).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Fred", ID: 30, PostalCode: 1000})

	// Rebind the parameter at query time, as a map and as a named value.
	p = Person{}
	c.Assert(db.Query(nil, stmt, structair.M{"id": 40}).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Mary", ID: 40, PostalCode: 3500})

	p = Person{}
	c.Assert(db.Query(nil, stmt, sql.Named("id", 20)).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Mark", ID: 20, PostalCode: 1500})

	// Get decodes the first row of several.
	ordered := structair.SelectFrom("person", personName, personID, personAddressID).
		OrderBy(personID).
		MustBuild()
	p = Person{}
	c.Assert(db.Query(nil, ordered).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Mark", ID: 20, PostalCode: 1500})

	// Get with no arguments checks at least one row exists.
	c.Assert(db.Query(nil, stmt).Get(), IsNil)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestGetErrors(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	withParam := structair.SelectFrom("person", personName).
		Where(structair.Eq(personID, structair.Param("id", 0))).
		MustBuild()

	var tests = []struct {
		summary string
		stmt    *structair.Statement
		inputs  []any
		outputs []any
		err     string
	}{{
		summary: "invalid input argument",
		stmt:    selectPeople(),
		inputs:  []any{42},
		outputs: []any{&Person{}},
		err:     "cannot use int as input argument, need map or sql.NamedArg",
	}, {
		summary: "parameter not in statement",
		stmt:    withParam,
		inputs:  []any{structair.M{"nope": 1}},
		outputs: []any{&Person{}},
		err:     `cannot bind "nope": parameter not in statement`,
	}, {
		summary: "outputs on an exec statement",
		stmt:    insertPerson("Nell", 60, 1000, "nell@email.com"),
		outputs: []any{&Person{}},
		err:     "cannot get results: output variables provided but query selects no columns",
	}}

	for _, t := range tests {
		err := db.Query(nil, t.stmt, t.inputs...).Get(t.outputs...)
		c.Assert(err, ErrorMatches, t.err, Commentf("\ntest %q failed", t.summary))
	}

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestErrNoRows(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personID, structair.Literal(-1))).
		MustBuild()

	err = db.Query(nil, stmt).Get(&Person{})
	c.Assert(err, Equals, structair.ErrNoRows)
	c.Assert(err, Equals, sql.ErrNoRows)

	var people []Person
	err = db.Query(nil, stmt).GetAll(&people)
	c.Assert(err, Equals, structair.ErrNoRows)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestValidGetAll(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Gt(personID, structair.Param("min", 0))).
		OrderBy(personID).
		MustBuild()

	var people []Person
	c.Assert(db.Query(nil, stmt).GetAll(&people), IsNil)
	c.Assert(people, DeepEquals, []Person{
		{Fullname: "Mark", ID: 20, PostalCode: 1500},
		{Fullname: "Fred", ID: 30, PostalCode: 1000},
		{Fullname: "James", ID: 35, PostalCode: 4500},
		{Fullname: "Mary", ID: 40, PostalCode: 3500},
	})

	// Slice of pointers, with the parameter rebound.
	var pointers []*Person
	c.Assert(db.Query(nil, stmt, structair.M{"min": 35}).GetAll(&pointers), IsNil)
	c.Assert(pointers, DeepEquals, []*Person{
		{Fullname: "Mary", ID: 40, PostalCode: 3500},
	})

	// Slice of maps.
	emails := structair.SelectFrom("person", personEmail).
		Where(structair.Lt(personID, structair.Literal(25))).
		MustBuild()
	var ms []structair.M
	c.Assert(db.Query(nil, emails).GetAll(&ms), IsNil)
	c.Assert(ms, DeepEquals, []structair.M{{"email": "mark@email.com"}})

	// GetAll appends to the slice contents.
	onlyFred := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personName, structair.Literal("Fred"))).
		MustBuild()
	people = []Person{{Fullname: "Zoe"}}
	c.Assert(db.Query(nil, onlyFred).GetAll(&people), IsNil)
	c.Assert(people, DeepEquals, []Person{
		{Fullname: "Zoe"},
		{Fullname: "Fred", ID: 30, PostalCode: 1000},
	})

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestGetAllErrors(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	selectID := structair.SelectFrom("person", personID).MustBuild()

	var nilSlice *[]Person
	var ints []int
	var intPtrs []*int
	var people []Person
	var managers []Manager
	var tests = []struct {
		summary string
		stmt    *structair.Statement
		args    []any
		err     string
	}{{
		summary: "not a pointer",
		stmt:    selectPeople(),
		args:    []any{[]Person{}},
		err:     "need pointer to slice, got slice",
	}, {
		summary: "untyped nil",
		stmt:    selectPeople(),
		args:    []any{nil},
		err:     "need pointer to slice, got invalid",
	}, {
		summary: "nil slice pointer",
		stmt:    selectPeople(),
		args:    []any{nilSlice},
		err:     "need pointer to slice, got nil",
	}, {
		summary: "pointer to struct",
		stmt:    selectPeople(),
		args:    []any{&Person{}},
		err:     "need pointer to slice, got pointer to struct",
	}, {
		summary: "slice of plain values",
		stmt:    selectID,
		args:    []any{&ints},
		err:     "need slice of structs/maps, got slice of int",
	}, {
		summary: "slice of pointers to plain values",
		stmt:    selectID,
		args:    []any{&intPtrs},
		err:     "need slice of structs/maps, got slice of pointer to int",
	}, {
		summary: "scan error propagates",
		stmt:    selectID,
		args:    []any{&people, &managers},
		err:     `cannot get result: cannot scan column "id": tagged in both struct "Person" and struct "Manager"`,
	}, {
		summary: "outputs on an exec statement",
		stmt:    insertPerson("Nell", 60, 1000, "nell@email.com"),
		args:    []any{&people},
		err:     "cannot get results: output variables provided but query selects no columns",
	}}

	for _, t := range tests {
		err := db.Query(nil, t.stmt).GetAll(t.args...)
		c.Assert(err, ErrorMatches, t.err, Commentf("\ntest %q failed", t.summary))
	}

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestRun(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	insert := structair.InsertInto("person", "name", "id", "address_id", "email").
		Values(
			structair.Param("name", ""),
			structair.Param("id", 0),
			structair.Param("address_id", 0),
			structair.Param("email", ""),
		).
		MustBuild()

	err = db.Query(nil, insert, structair.M{
		"name": "Derek", "id": 85, "address_id": 8000, "email": "derek@email.com",
	}).Run()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personName, structair.Literal("Derek"))).
		MustBuild()
	var p Person
	c.Assert(db.Query(nil, stmt).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Derek", ID: 85, PostalCode: 8000})

	// Run on a statement that selects rows discards the results.
	c.Assert(db.Query(nil, stmt).Run(), IsNil)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestOutcome(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	selectFiona := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personID, structair.Literal(77))).
		MustBuild()

	var outcome structair.Outcome

	// Get the outcome of an exec statement.
	c.Assert(db.Query(nil, insertPerson("Fiona", 77, 9000, "fiona@email.com")).Get(&outcome), IsNil)
	res := outcome.Result()
	c.Assert(res, NotNil)
	affected, err := res.RowsAffected()
	c.Assert(err, IsNil)
	c.Assert(affected, Equals, int64(1))

	// A statement selecting rows has no result.
	outcome = structair.Outcome{}
	var p Person
	c.Assert(db.Query(nil, selectFiona).Get(&outcome, &p), IsNil)
	c.Assert(outcome.Result(), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Fiona", ID: 77, PostalCode: 9000})

	// The outcome can be the only argument.
	outcome = structair.Outcome{}
	c.Assert(db.Query(nil, selectFiona).Get(&outcome), IsNil)
	c.Assert(outcome.Result(), IsNil)

	// Outcome with Iter: get it before the first Next.
	outcome = structair.Outcome{}
	iter := db.Query(nil, insertPerson("Gregor", 78, 9000, "gregor@email.com")).Iter()
	c.Assert(iter.Get(&outcome), IsNil)
	c.Assert(outcome.Result(), NotNil)
	c.Assert(iter.Next(), Equals, false)
	c.Assert(iter.Close(), IsNil)

	// Outcome with GetAll.
	outcome = structair.Outcome{}
	var people []Person
	c.Assert(db.Query(nil, selectFiona).GetAll(&outcome, &people), IsNil)
	c.Assert(outcome.Result(), IsNil)
	c.Assert(people, HasLen, 1)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestQueryMultipleRuns(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName, personID, personAddressID).
		OrderBy(personID).
		MustBuild()

	// A Query value can be executed any number of times.
	q := db.Query(nil, stmt)

	var p1 Person
	c.Assert(q.Get(&p1), IsNil)

	var p2 Person
	c.Assert(q.Get(&p2), IsNil)
	c.Assert(p2, DeepEquals, p1)

	iter := q.Iter()
	c.Assert(iter.Next(), Equals, true)
	var p3 Person
	c.Assert(iter.Get(&p3), IsNil)
	c.Assert(iter.Close(), IsNil)
	c.Assert(p3, DeepEquals, p1)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestTransactions(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	selectDerek := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personName, structair.Literal("Derek"))).
		MustBuild()

	// Insert and read back inside one transaction.
	tx, err := db.Begin(nil, nil)
	c.Assert(err, IsNil)
	c.Assert(tx.Query(nil, insertPerson("Derek", 85, 8000, "derek@email.com")).Run(), IsNil)

	var p Person
	c.Assert(tx.Query(nil, selectDerek).Get(&p), IsNil)
	c.Assert(p, DeepEquals, Person{Fullname: "Derek", ID: 85, PostalCode: 8000})
	c.Assert(tx.Commit(), IsNil)

	// The commit made the row visible outside the transaction.
	p = Person{}
	c.Assert(db.Query(nil, selectDerek).Get(&p), IsNil)
	c.Assert(p.ID, Equals, 85)

	// A rolled back insert is not visible.
	selectSusan := structair.SelectFrom("person", personName, personID, personAddressID).
		Where(structair.Eq(personName, structair.Literal("Susan"))).
		MustBuild()

	tx, err = db.Begin(nil, nil)
	c.Assert(err, IsNil)
	c.Assert(tx.Query(nil, insertPerson("Susan", 55, 2000, "susan@email.com")).Run(), IsNil)
	c.Assert(tx.Rollback(), IsNil)

	err = db.Query(nil, selectSusan).Get(&Person{})
	c.Assert(err, Equals, structair.ErrNoRows)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestTransactionErrors(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personName).MustBuild()

	// A query built before the commit but run after it.
	tx, err := db.Begin(nil, nil)
	c.Assert(err, IsNil)
	q := tx.Query(nil, stmt)
	c.Assert(tx.Commit(), IsNil)
	c.Assert(q.Run(), ErrorMatches, "sql: transaction has already been committed or rolled back")

	// A query created after the commit.
	err = tx.Query(nil, stmt).Run()
	c.Assert(err, Equals, structair.ErrTXDone)

	// Ending the transaction twice.
	c.Assert(tx.Commit(), Equals, structair.ErrTXDone)
	c.Assert(tx.Rollback(), Equals, structair.ErrTXDone)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestIterMethodOrder(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	stmt := selectPeople()

	var p Person
	// Get before Next.
	iter := db.Query(nil, stmt).Iter()
	err = iter.Get(&p)
	c.Assert(err, ErrorMatches, "cannot get result: cannot call Get before Next unless getting outcome")
	c.Assert(iter.Close(), IsNil)

	// Get after Close.
	iter = db.Query(nil, stmt).Iter()
	c.Assert(iter.Next(), Equals, true)
	c.Assert(iter.Close(), IsNil)
	err = iter.Get(&p)
	c.Assert(err, ErrorMatches, "cannot get result: iteration ended")

	// Next after Close.
	iter = db.Query(nil, stmt).Iter()
	c.Assert(iter.Next(), Equals, true)
	c.Assert(iter.Close(), IsNil)
	c.Assert(iter.Next(), Equals, false)

	// Close after Close.
	iter = db.Query(nil, stmt).Iter()
	c.Assert(iter.Next(), Equals, true)
	c.Assert(iter.Close(), IsNil)
	c.Assert(iter.Close(), IsNil)
	c.Assert(iter.Close(), IsNil)

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestScanErrors(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	// The name column arrives labelled as id and scans into an int field.
	stmt := structair.SelectFrom("person", structair.Label(personName, "id")).
		Where(structair.Eq(personName, structair.Literal("Fred"))).
		MustBuild()

	iter := db.Query(nil, stmt).Iter()
	c.Assert(iter.Next(), Equals, true)
	err = iter.Get(&Person{})
	c.Assert(err, ErrorMatches,
		`cannot get result: sql: Scan error on column index 0, name "id": `+
			`converting driver.Value type string \("Fred"\) to a int: invalid syntax`)
	c.Assert(iter.Close(), IsNil)

	dropTables(c, db, drop)
}

type emailHolder struct {
	Email *string `db:"email"`
}

func (s *PackageSuite) TestNulls(c *C) {
	drop, db, err := personAndAddressDB()
	c.Assert(err, IsNil)

	_, err = db.PlainDB().Exec("INSERT INTO person VALUES ('Edward', 66, NULL, NULL);")
	c.Assert(err, IsNil)

	stmt := structair.SelectFrom("person", personAddressID, personEmail).
		Where(structair.Eq(personName, structair.Literal("Edward"))).
		MustBuild()

	// A NULL zeroes a plain field and nils a pointer field.
	p := Person{PostalCode: 123}
	var e emailHolder
	c.Assert(db.Query(nil, stmt).Get(&p, &e), IsNil)
	c.Assert(p.PostalCode, Equals, 0)
	c.Assert(e.Email, IsNil)

	// A NULL arrives in a map as a nil value under the column name.
	m := structair.M{}
	c.Assert(db.Query(nil, stmt).Get(m), IsNil)
	c.Assert(m, DeepEquals, structair.M{"address_id": nil, "email": nil})

	// A pointer field set from a non-NULL column.
	fred := structair.SelectFrom("person", personEmail).
		Where(structair.Eq(personName, structair.Literal("Fred"))).
		MustBuild()
	e = emailHolder{}
	c.Assert(db.Query(nil, fred).Get(&e), IsNil)
	c.Assert(e.Email, NotNil)
	c.Assert(*e.Email, Equals, "fred@email.com")

	dropTables(c, db, drop)
}

func (s *PackageSuite) TestBuilderRoundTrip(c *C) {
	sqldb, err := setupDB()
	c.Assert(err, IsNil)
	db := structair.NewDB(sqldb)

	create := structair.CreateTable("pets").
		IfNotExists().
		Column("name", structair.String).
		Column("legs", structair.Int64).
		MustBuild()
	c.Assert(db.Query(nil, create).Run(), IsNil)

	insert := structair.InsertInto("pets", "name", "legs").
		Values(structair.Param("name", ""), structair.Param("legs", 0)).
		MustBuild()
	pets := map[string]int{"dog": 4, "ant": 6, "snake": 0}
	for name, legs := range pets {
		err := db.Query(nil, insert, structair.M{"name": name, "legs": legs}).Run()
		c.Assert(err, IsNil)
	}

	name := structair.Column("name", structair.String)
	legs := structair.Column("legs", structair.Int64)
	stmt := structair.SelectFrom("pets", name, legs).
		Where(structair.Ge(legs, structair.Param("min", 0))).
		OrderBy(structair.Desc(legs)).
		Limit(2).
		MustBuild()

	type pet struct {
		Name string `db:"name"`
		Legs int    `db:"legs"`
	}
	var rows []pet
	c.Assert(db.Query(nil, stmt, structair.M{"min": 1}).GetAll(&rows), IsNil)
	c.Assert(rows, DeepEquals, []pet{
		{Name: "ant", Legs: 6},
		{Name: "dog", Legs: 4},
	})

	_, err = db.PlainDB().Exec("DROP TABLE pets;")
	c.Assert(err, IsNil)
}
