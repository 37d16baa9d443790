package demo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/structair"
)

type Person struct {
	Name     string `db:"name"`
	Height   int    `db:"height_cm"`
	HomeTown string `db:"home_town"`
}

func example() error {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	db := structair.NewDB(sqldb)

	createPeople := structair.CreateTable("people").
		Column("name", structair.String).
		Column("height_cm", structair.Int64).
		Column("home_town", structair.String).
		MustBuild()
	insertPerson := structair.InsertInto("people", "name", "height_cm", "home_town").
		Values(
			structair.Param("name", ""),
			structair.Param("height_cm", 0),
			structair.Param("home_town", ""),
		).MustBuild()
	tallerThan := structair.SelectFrom("people",
		structair.Column("name", structair.String),
		structair.Column("height_cm", structair.Int64),
		structair.Column("home_town", structair.String),
	).Where(structair.Gt(
		structair.Column("height_cm", structair.Int64),
		structair.Param("height_cm", 0),
	)).OrderBy(
		structair.Column("height_cm", structair.Int64),
	).MustBuild()

	err = db.Query(context.Background(), createPeople).Run()
	if err != nil {
		return err
	}

	var people = []Person{
		{"Jim", 150, "Kabul"},
		{"Saba", 162, "Berlin"},
		{"Dave", 169, "Brasília"},
		{"Sophie", 174, "Berlin"},
		{"Kiri", 168, "Cape Town"},
	}
	for _, person := range people {
		args := structair.M{
			"name":      person.Name,
			"height_cm": person.Height,
			"home_town": person.HomeTown,
		}
		err := db.Query(context.Background(), insertPerson, args).Run()
		if err != nil {
			return err
		}
	}

	// Find people taller than Jim.
	jim := people[0]
	q := db.Query(context.Background(), tallerThan, structair.M{"height_cm": jim.Height})
	iter := q.Iter()
	for iter.Next() {
		p := Person{}
		if err := iter.Get(&p); err != nil {
			break
		}
		fmt.Printf("%s is taller than %s.\n", p.Name, jim.Name)
	}
	err = iter.Close()
	if err != nil {
		return err
	}

	// The same statement against a bigger threshold, all rows at once.
	tallPeople := []Person{}
	err = db.Query(context.Background(), tallerThan, structair.M{"height_cm": 165}).GetAll(&tallPeople)
	if err != nil {
		return err
	}
	fmt.Printf("This is a list of people taller than 165cm: %v\n", tallPeople)

	// A BigQuery statement with a STRUCT column compiles without a
	// database at all.
	createTall := structair.CreateTable("tall_people").
		Column("person", structair.Struct(
			structair.StructField{Name: "name", Type: structair.String},
			structair.StructField{Name: "height_cm", Type: structair.Int64},
		)).MustBuild()
	fmt.Println(createTall.SQL())
	return nil
}
