// Package memory provides in-memory repositories with the same key
// semantics as the Postgres ones. Used by tests and APP_STORE=memory runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/qrcode"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
)

// =============================================================================
// STORE
// =============================================================================

// Store holds every table. Units of work are serialized by txMu and rolled
// back from a snapshot on error.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data tables
	loc  *time.Location
	now  func() time.Time
}

type tables struct {
	attendances    map[string]attendance.Attendance
	attendanceKeys map[string]string // person|date -> id
	corrections    []attendance.CorrectionLog
	shifts         map[string]shift.Shift
	assignments    map[string]shift.Assignment
	settings       map[string]setting.Setting
	devices        map[string]device.UserDevice
	qrCodes        map[string]qrcode.QRCode
}

func newTables() tables {
	return tables{
		attendances:    make(map[string]attendance.Attendance),
		attendanceKeys: make(map[string]string),
		shifts:         make(map[string]shift.Shift),
		assignments:    make(map[string]shift.Assignment),
		settings:       make(map[string]setting.Setting),
		devices:        make(map[string]device.UserDevice),
		qrCodes:        make(map[string]qrcode.QRCode),
	}
}

func (t tables) clone() tables {
	return tables{
		attendances:    maps.Clone(t.attendances),
		attendanceKeys: maps.Clone(t.attendanceKeys),
		corrections:    slices.Clone(t.corrections),
		shifts:         maps.Clone(t.shifts),
		assignments:    maps.Clone(t.assignments),
		settings:       maps.Clone(t.settings),
		devices:        maps.Clone(t.devices),
		qrCodes:        maps.Clone(t.qrCodes),
	}
}

func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		data: newTables(),
		loc:  loc,
		now:  time.Now,
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// WithinTransaction implements database.Transactor.
// Nested calls reuse the outer unit of work.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) restore(snapshot tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snapshot
}

// write runs fn with exclusive access. Outside a unit of work it also takes
// txMu so a rollback cannot discard it.
func (s *Store) write(ctx context.Context, fn func(t *tables) error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// Transactor exposes the store as a database.Transactor.
func (s *Store) Transactor() database.Transactor {
	return s
}

// =============================================================================
// SEEDING (device and QR issuance live outside the engine)
// =============================================================================

// PutDevice inserts or replaces a device, assigning an id when empty.
func (s *Store) PutDevice(d device.UserDevice) device.UserDevice {
	_ = s.write(context.Background(), func(t *tables) error {
		if d.ID == "" {
			d.ID = newID()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = s.stamp()
		}
		d.UpdatedAt = s.stamp()
		t.devices[d.ID] = d
		return nil
	})
	return d
}

// PutQRCode inserts or replaces a QR code, assigning an id when empty.
// Codes must be unique.
func (s *Store) PutQRCode(c qrcode.QRCode) (qrcode.QRCode, error) {
	err := s.write(context.Background(), func(t *tables) error {
		for id, existing := range t.qrCodes {
			if existing.Code == c.Code && id != c.ID {
				return fmt.Errorf("QR code %q already exists", c.Code)
			}
		}
		if c.ID == "" {
			c.ID = newID()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.stamp()
		}
		t.qrCodes[c.ID] = c
		return nil
	})
	return c, err
}
