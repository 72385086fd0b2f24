// Package journal keeps an audit log of the commands the controller dispatched.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
)

// Memory is the path of a journal that isn't saved to disk.
const Memory = ":memory:"

const keyPattern = "cmd:*"

// Entry is one dispatched command and its outcome.
type Entry struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`
	// Kind is e.g. "point", "route", "turntable", "global" or "reload".
	Kind string `json:"kind"`
	// Input is the operator input that caused the command, if any.
	Input   string `json:"input,omitempty"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	// Result is the error message if !OK.
	Result string `json:"result,omitempty"`
}

func (e Entry) key() string {
	return fmt.Sprintf("cmd:%020d:%s", e.Time.UnixNano(), e.ID)
}

type Journal struct {
	db  *buntdb.DB
	ttl time.Duration
}

// Open opens the journal at path (Memory if empty). Entries expire after ttl; 0 keeps them.
func Open(path string, ttl time.Duration) (*Journal, error) {
	if path == "" {
		path = Memory
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if path != Memory {
		err = db.SetConfig(buntdb.Config{
			SyncPolicy:           buntdb.EverySecond,
			AutoShrinkPercentage: 100,
			AutoShrinkMinSize:    32 * 1024 * 1024,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("configure journal %s: %w", path, err)
		}
	}
	return &Journal{db: db, ttl: ttl}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores e, filling in its ID and Time if they are zero, and returns what was stored.
func (j *Journal) Append(e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	var opts *buntdb.SetOptions
	if j.ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: j.ttl}
	}
	err = j.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(e.key(), string(data), opts)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("append %s: %w", e.Command, err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all of them.
func (j *Journal) List(limit int) ([]Entry, error) {
	var res []Entry
	var decodeErr error
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys(keyPattern, func(key, value string) bool {
			var e Entry
			if err := json.Unmarshal([]byte(value), &e); err != nil {
				decodeErr = fmt.Errorf("entry %s: %w", key, err)
				return false
			}
			res = append(res, e)
			return limit <= 0 || len(res) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	return res, decodeErr
}

// Len returns the number of unexpired entries.
func (j *Journal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(keyPattern, func(_, _ string) bool {
			n++
			return true
		})
	})
	return n, err
}
