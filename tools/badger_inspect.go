// Command badger_inspect dumps the durable store in a readable table:
// message history (msg:), the moderation audit trail (mod:) and mirrored
// session records (session:). Opens the database read-only so it can run
// next to a live coordinator.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"sanctuary/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/sanctuary", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, mod:, session:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Session", "Who", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				row, err := toRow(key, v)
				if err != nil {
					// Log and keep scanning instead of stopping the dump.
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func toRow(key string, value []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return nil, err
		}
		return []string{
			key, "MESSAGE", m.CreatedAt.Format("15:04:05"),
			shorten(string(m.SessionID)), m.SenderAlias, shorten(m.Content),
		}, nil

	case strings.HasPrefix(key, "mod:"):
		var e domain.ModerationEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, err
		}
		detail := fmt.Sprintf("severity=%s action=%s resolved=%t", e.Severity, e.Action, e.Resolved)
		return []string{
			key, "AUDIT", e.CreatedAt.Format("15:04:05"),
			shorten(string(e.SessionID)), shorten(e.ParticipantID), detail,
		}, nil

	case strings.HasPrefix(key, "session:"):
		var s domain.Session
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, err
		}
		detail := fmt.Sprintf("max=%d active=%t expires=%s", s.MaxParticipants, s.IsActive, s.ExpiresAt.Format("15:04:05"))
		return []string{key, "SESSION", "", shorten(string(s.ID)), "", detail}, nil

	default:
		return []string{key, "RAW", "", "", "", shorten(string(value))}, nil
	}
}

// shorten keeps table rows readable on a terminal.
func shorten(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			// A crashed writer left the value log dirty. Open once in write
			// mode so badger can truncate, then reopen read-only.
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
