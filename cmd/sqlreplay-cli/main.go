// Command sqlreplay-cli runs queries through a sqlreplayd host and prints the
// rows the way the sqlite3 command-line utility does.
package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/anacrolix/envpprof"
	"github.com/docopt/docopt-go"
	"github.com/jmoiron/sqlx"

	"github.com/anacrolix/sqlreplay"
)

const doc = `Usage:
  sqlreplay-cli [--addr=<addr>] [--conn=<cs>] <query>...

Options:
  --addr=<addr>  sqlreplayd address [default: localhost:6033]
  --conn=<cs>    Connection string, if not the host's default.
`

func printRow(w io.Writer, row []interface{}) {
	for i, v := range row {
		if i != 0 {
			fmt.Fprint(w, "|")
		}
		switch x := v.(type) {
		case nil:
		case []byte:
			fmt.Fprintf(w, "%s", x)
		default:
			fmt.Fprintf(w, "%v", x)
		}
	}
	fmt.Fprintln(w)
}

func run(db *sqlx.DB, query string, w io.Writer) error {
	rows, err := db.Queryx(query)
	if err != nil {
		return fmt.Errorf("error executing sql: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return err
		}
		printRow(w, row)
	}
	return rows.Err()
}

func main() {
	opts, err := docopt.Parse(doc, nil, true, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing options: %s", err)
		os.Exit(2)
	}
	cs, _ := opts["--conn"].(string)
	db, err := sqlx.Open("sqlreplay", sqlreplay.FormatDSN(opts["--addr"].(string), cs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %s\n", err)
		os.Exit(1)
	}
	defer db.Close()
	for _, q := range opts["<query>"].([]string) {
		if err := run(db, q, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
