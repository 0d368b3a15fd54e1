// Command rankboard prints the ranking board or one account's placements
// straight from the database.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/icco/minesduel/ranking"
	"github.com/icco/minesduel/store"
)

type options struct {
	Database string `short:"d" long:"database" env:"DATABASE_URL" default:"minesduel.db" description:"Database DSN (postgres URL or sqlite path)"`
	Limit    int    `short:"n" long:"limit" default:"20" description:"Number of entries to print"`
	Handle   string `short:"u" long:"handle" description:"Print placements for this handle instead of the board"`
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	db, err := store.Open(opts.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer db.Close()

	if err := run(context.Background(), os.Stdout, db, opts); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ctx context.Context, w io.Writer, db *store.Store, opts options) error {
	svc := ranking.New(db)

	if opts.Handle != "" {
		user, err := db.UserByHandle(ctx, opts.Handle)
		if err != nil {
			return err
		}
		p, err := svc.Placements(ctx, user.ID)
		if err != nil {
			return err
		}
		printPlacements(w, user.Handle, p)
		return nil
	}

	board, err := svc.Board(ctx, nil, opts.Limit)
	if err != nil {
		return err
	}
	printBoard(w, board)
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func printBoard(w io.Writer, board *ranking.Board) {
	t := newTable("#", "HANDLE", "SCORE")
	for i, e := range board.Top {
		t.Row(strconv.Itoa(i+1), e.Handle, strconv.Itoa(e.Score))
	}
	fmt.Fprintln(w, t.Render())
}

func printPlacements(w io.Writer, handle string, p ranking.Placements) {
	t := newTable("HANDLE", "1ST", "2ND", "3RD", "LAST")
	t.Row(handle, strconv.Itoa(p.First), strconv.Itoa(p.Second), strconv.Itoa(p.Third), strconv.Itoa(p.Last))
	fmt.Fprintln(w, t.Render())
}
