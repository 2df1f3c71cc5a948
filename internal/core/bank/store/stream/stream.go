// Package stream encodes a bank snapshot as a versioned binary record stream.
//
// Layout, all integers big endian:
//
//	"BANK" version:u16
//	customers:i32 lastAccountID:i32
//	customer*  = personalID:str firstName:str lastName:str accounts:i32 account*
//	account    = id:i32 kind:u8 feeFreeUsed:u8 balance:str transactions:i32 transaction*
//	transaction = id:[16]byte unixNano:i64 amount:str balance:str
//	str        = length:u32 bytes
//
// Amounts are written as decimal text.
package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/money"
)

const magic = "BANK"

// Version is the record schema version written by Encode.
const Version uint16 = 1

const maxString = 1 << 16

// ErrFormat is returned when a stream cannot be decoded.
var ErrFormat = errors.New("stream invalid format")

// =============================================================================

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.BigEndian, v)
}

func (e *encoder) str(s string) {
	e.write(uint32(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

// Encode writes the snapshot to w.
func Encode(w io.Writer, s bank.Snapshot) error {
	e := encoder{w: bufio.NewWriter(w)}

	e.write([]byte(magic))
	e.write(Version)
	e.write(int32(len(s.Customers)))
	e.write(int32(s.LastAccountID))

	for _, c := range s.Customers {
		e.str(c.PersonalID)
		e.str(c.FirstName)
		e.str(c.LastName)
		e.write(int32(len(c.Accounts)))

		for _, a := range c.Accounts {
			e.write(int32(a.ID))
			e.write(uint8(a.Kind))
			e.write(a.FeeFreeUsed)
			e.str(a.Balance.String())
			e.write(int32(len(a.Transactions)))

			for _, t := range a.Transactions {
				e.write(t.ID)
				e.write(t.Date.UnixNano())
				e.str(t.Amount.String())
				e.str(t.Balance.String())
			}
		}
	}

	if e.err != nil {
		return fmt.Errorf("encode: %w", e.err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("encode: flush: %w", err)
	}
	return nil
}

// =============================================================================

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.BigEndian, v)
}

func (d *decoder) count() int {
	var n int32
	d.read(&n)
	if d.err == nil && n < 0 {
		d.err = fmt.Errorf("negative count %d: %w", n, ErrFormat)
	}
	return int(n)
}

func (d *decoder) str() string {
	var n uint32
	d.read(&n)
	if d.err != nil {
		return ""
	}
	if n > maxString {
		d.err = fmt.Errorf("string of %d bytes: %w", n, ErrFormat)
		return ""
	}
	b := make([]byte, n)
	_, d.err = io.ReadFull(d.r, b)
	return string(b)
}

func (d *decoder) money() money.Money {
	s := d.str()
	if d.err != nil {
		return money.Zero
	}
	m, err := money.Parse(s)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return m
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (bank.Snapshot, error) {
	d := decoder{r: bufio.NewReader(r)}

	head := make([]byte, len(magic))
	d.read(head)
	if d.err == nil && string(head) != magic {
		return bank.Snapshot{}, fmt.Errorf("decode: bad magic %q: %w", head, ErrFormat)
	}

	var version uint16
	d.read(&version)
	if d.err == nil && version != Version {
		return bank.Snapshot{}, fmt.Errorf("decode: version %d: %w", version, ErrFormat)
	}

	customers := d.count()
	var lastID int32
	d.read(&lastID)

	var s bank.Snapshot
	s.LastAccountID = int(lastID)

	for i := 0; i < customers && d.err == nil; i++ {
		c := bank.CustomerRecord{
			PersonalID: d.str(),
			FirstName:  d.str(),
			LastName:   d.str(),
		}

		accounts := d.count()
		for j := 0; j < accounts && d.err == nil; j++ {
			c.Accounts = append(c.Accounts, d.account())
		}
		s.Customers = append(s.Customers, c)
	}

	if d.err != nil {
		if errors.Is(d.err, io.EOF) || errors.Is(d.err, io.ErrUnexpectedEOF) {
			return bank.Snapshot{}, fmt.Errorf("decode: truncated: %w", ErrFormat)
		}
		return bank.Snapshot{}, fmt.Errorf("decode: %w", d.err)
	}
	return s, nil
}

func (d *decoder) account() account.State {
	var (
		id      int32
		kind    uint8
		feeFree bool
	)
	d.read(&id)
	d.read(&kind)
	d.read(&feeFree)

	a := account.State{
		ID:          int(id),
		Kind:        account.Kind(kind),
		FeeFreeUsed: feeFree,
		Balance:     d.money(),
	}

	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		var (
			tid  uuid.UUID
			nano int64
		)
		d.read(&tid)
		d.read(&nano)

		a.Transactions = append(a.Transactions, account.Transaction{
			ID:      tid,
			Date:    time.Unix(0, nano).UTC(),
			Amount:  d.money(),
			Balance: d.money(),
		})
	}
	return a
}
