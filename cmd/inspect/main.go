// Command inspect prints the rooms, memberships and invitations of a
// wallet-chat badger directory. It opens the store read-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"wallet-chat/domain"
	"wallet-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// INSPECT_COLOURS enables colorized section headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Error while reading config: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	roomFilter := flag.String("room", "", "Only show this room")
	flag.Parse()
	color.Enable = config.Colours

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	store := repositories.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err = store.View(context.Background(), func(tx *repositories.Tx) error {
		rooms, err := tx.Rooms()
		if err != nil {
			return err
		}
		for _, room := range rooms {
			if *roomFilter != "" && room.ID.String() != *roomFilter {
				continue
			}
			if err := printRoom(tx, room); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}

func printRoom(tx *repositories.Tx, room domain.Room) error {
	state := color.FgGreen.Render("active")
	if !room.Active {
		state = color.FgRed.Render("deleted")
	}
	header := fmt.Sprintf(" %s  %s  [%s] %s ", room.ID, room.Name, room.Type, state)
	fmt.Println(color.New(color.BgBlack, color.FgCyan).Render(header))

	memberships, err := tx.RoomMemberships(room.ID)
	if err != nil {
		return err
	}
	members := newTable("User", "Status", "Admin", "Joined", "Left")
	for _, m := range memberships {
		members.Append([]string{
			m.UserID.String(),
			string(m.Status),
			strconv.FormatBool(m.IsAdmin),
			formatTime(m.JoinedAt),
			formatTimePtr(m.LeftAt),
		})
	}
	members.Render()

	invitations, err := tx.RoomInvitations(room.ID)
	if err != nil {
		return err
	}
	if len(invitations) > 0 {
		table := newTable("Invitation", "Invitee", "Status", "Expires")
		for _, inv := range invitations {
			table.Append([]string{inv.ID.String(), inv.InviteeWallet, string(inv.Status), formatTime(inv.ExpiresAt)})
		}
		table.Render()
	}
	fmt.Println()
	return nil
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateTime)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}
