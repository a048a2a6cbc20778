package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MaxSlots is the number of capture slots on an enrollment form.
const MaxSlots = 4

var (
	ErrFormClosed = errors.New("enrollment form is closed")
	ErrNoSlot     = errors.New("no such slot")
)

// IdentifierPolicy decides which identifier a slot's verify and upload use.
type IdentifierPolicy int

const (
	// LiveIdentifier reads the form's identifier when verify or upload runs.
	// Editing the identifier after a capture redirects that image to the new
	// identifier.
	LiveIdentifier IdentifierPolicy = iota
	// BindAtCapture records the identifier when the image is acquired.
	BindAtCapture
)

// RecordSaver persists the enrollment record itself (the student or staff
// row). It is independent of any face upload.
type RecordSaver interface {
	SaveRecord(ctx context.Context, idType, identifier string) error
}

// RecordSaverFunc adapts a function to RecordSaver.
type RecordSaverFunc func(ctx context.Context, idType, identifier string) error

func (f RecordSaverFunc) SaveRecord(ctx context.Context, idType, identifier string) error {
	return f(ctx, idType, identifier)
}

type FormOption func(*Form)

// WithBoundIdentifier binds each slot to the identifier present when its
// image was captured or selected.
func WithBoundIdentifier() FormOption {
	return func(f *Form) { f.policy = BindAtCapture }
}

// WithSlots limits the form to n slots (1..MaxSlots).
func WithSlots(n int) FormOption {
	return func(f *Form) {
		if n >= 1 && n <= MaxSlots {
			f.slotCount = n
		}
	}
}

// WithRecordSaver sets the saver used by Save.
func WithRecordSaver(saver RecordSaver) FormOption {
	return func(f *Form) { f.saver = saver }
}

// Form is one open enrollment: an identifier plus its capture slots.
// Nothing on it outlives Close.
type Form struct {
	idType    string
	policy    IdentifierPolicy
	slotCount int
	saver     RecordSaver

	mu         sync.RWMutex
	identifier string
	slots      []*Slot
	closed     bool
}

func NewForm(idType string, service FaceService, opts ...FormOption) *Form {
	f := &Form{idType: idType, slotCount: MaxSlots}
	for _, opt := range opts {
		opt(f)
	}
	f.slots = make([]*Slot, f.slotCount)
	for i := range f.slots {
		f.slots[i] = NewSlot(i, idType, service)
	}
	return f
}

func (f *Form) IDType() string { return f.idType }

func (f *Form) Policy() IdentifierPolicy { return f.policy }

func (f *Form) SetIdentifier(identifier string) {
	f.mu.Lock()
	f.identifier = strings.TrimSpace(identifier)
	f.mu.Unlock()
}

func (f *Form) Identifier() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.identifier
}

// Slot returns slot i.
func (f *Form) Slot(i int) (*Slot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrFormClosed
	}
	if i < 0 || i >= len(f.slots) {
		return nil, fmt.Errorf("%w: %d", ErrNoSlot, i)
	}
	return f.slots[i], nil
}

func (f *Form) bindID() string {
	if f.policy == BindAtCapture {
		return f.Identifier()
	}
	return ""
}

// identifierFor resolves the identifier a slot's network call should carry.
func (f *Form) identifierFor(s *Slot) string {
	if f.policy == BindAtCapture {
		return s.BoundIdentifier()
	}
	return f.Identifier()
}

func (f *Form) Capture(ctx context.Context, i int, src FrameSource) (bool, error) {
	s, err := f.Slot(i)
	if err != nil {
		return false, err
	}
	return s.capture(ctx, src, f.bindID()), nil
}

func (f *Form) SelectFile(i int, name string, data []byte) error {
	s, err := f.Slot(i)
	if err != nil {
		return err
	}
	s.selectFile(name, data, f.bindID())
	return nil
}

func (f *Form) Verify(ctx context.Context, i int) (Status, error) {
	s, err := f.Slot(i)
	if err != nil {
		return "", err
	}
	return s.Verify(ctx, f.identifierFor(s)), nil
}

func (f *Form) Upload(ctx context.Context, i int) (Status, error) {
	s, err := f.Slot(i)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, f.identifierFor(s)), nil
}

// Snapshots returns the state of every slot in index order.
func (f *Form) Snapshots() []Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Snapshot, 0, len(f.slots))
	for _, s := range f.slots {
		out = append(out, s.Snapshot())
	}
	return out
}

// Save persists the enrollment record. Face slot outcomes do not affect it
// and it does not touch the slots.
func (f *Form) Save(ctx context.Context) error {
	f.mu.RLock()
	closed := f.closed
	f.mu.RUnlock()
	if closed {
		return ErrFormClosed
	}
	if f.saver == nil {
		return errors.New("no record saver configured")
	}
	identifier := f.Identifier()
	if identifier == "" {
		return errors.New("identifier is required")
	}
	return f.saver.SaveRecord(ctx, f.idType, identifier)
}

// Close discards every slot. Calls already in flight finish against their
// own slot but the results are no longer reachable from the form.
func (f *Form) Close() {
	f.mu.Lock()
	f.closed = true
	f.slots = nil
	f.mu.Unlock()
}
