package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/dbsql"
)

func TestPrintRow(t *testing.T) {
	var buf bytes.Buffer
	printRow(&buf, []interface{}{int64(1), nil, []byte("blob"), "text"})
	assert.Equal(t, "1||blob|text\n", buf.String())
}

func TestRun(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	s := sqlreplay.NewService(&dbsql.Driver{Name: "sqlite3"}, sqlreplay.Options{})
	h, err := sqlreplay.NewHost(s, l)
	require.NoError(t, err)
	defer h.Close()
	db, err := sqlx.Open("sqlreplay", sqlreplay.FormatDSN(h.Addr().String(), "file:cli?mode=memory&cache=shared"))
	require.NoError(t, err)
	defer db.Close()
	var buf bytes.Buffer
	require.NoError(t, run(db, "select 1, 'a', null union all select 2, 'b', 3", &buf))
	assert.Equal(t, "1|a|\n2|b|3\n", buf.String())
	assert.Error(t, run(db, "select * from nowhere", &buf))
}
