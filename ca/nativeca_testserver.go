package ca

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
)

// InProcessServer is a NativeCA implementation backed by an in-memory PV
// table, standing in for a linked EPICS CA library so the whole stack
// (scheduler, Client, Channel, Subscription) can be built and tested
// without one (spec §1/§6's native library boundary is explicitly out of
// scope; this is the reference implementation of its contract). Every
// completion is delivered from a background goroutine, the same way a
// real CA library's completions arrive on its own internal threads, so
// Client's PostCallback-based marshaling back onto the scheduler is
// genuinely exercised rather than simulated away.
type InProcessServer struct {
	mu sync.Mutex

	pvs      map[string]*testPV
	channels map[uintptr]*testChannel

	nextHandle uintptr
	closed     bool
	connectDelay time.Duration
}

type testPV struct {
	ft    FieldType
	count int
	raw   []byte // plain native-format element bytes, no status/time header
	subs  map[uintptr]*testSub
}

type testChannel struct {
	name      string
	token     uintptr
	onConnect ConnectCallback
}

type testSub struct {
	token    uintptr
	ft       FieldType
	fmtGroup Format
	count    int
	onUpdate SubscriptionCallback
}

// NewInProcessServer creates an empty in-process CA server. Use
// SeedPV to populate it with PVs before connecting a Client to it.
func NewInProcessServer() *InProcessServer {
	return &InProcessServer{
		pvs:          make(map[string]*testPV),
		channels:     make(map[uintptr]*testChannel),
		connectDelay: time.Millisecond,
	}
}

// SeedPV creates or overwrites pv with an initial value.
func (s *InProcessServer) SeedPV(pv string, ft FieldType, data any) error {
	raw, err := Encode(ft, data)
	if err != nil {
		return err
	}
	count := elementCount(ft, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pvs[pv] = &testPV{ft: ft, count: count, raw: raw, subs: make(map[uintptr]*testSub)}
	return nil
}

func elementCount(ft FieldType, data any) int {
	switch ft {
	case FieldString:
		return len(data.([]string))
	case FieldShort, FieldEnum:
		return len(data.([]int16))
	case FieldFloat:
		return len(data.([]float32))
	case FieldChar:
		return len(data.([]byte))
	case FieldLong:
		return len(data.([]int32))
	case FieldDouble:
		return len(data.([]float64))
	default:
		return 0
	}
}

func (s *InProcessServer) CreateChannel(ctx context.Context, pv string, userToken uintptr, onConnect ConnectCallback) (uintptr, error) {
	s.mu.Lock()
	if _, ok := s.pvs[pv]; !ok {
		s.pvs[pv] = &testPV{ft: FieldDouble, count: 1, raw: make([]byte, 8), subs: make(map[uintptr]*testSub)}
	}
	s.nextHandle++
	handle := s.nextHandle
	s.channels[handle] = &testChannel{name: pv, token: userToken, onConnect: onConnect}
	delay := s.connectDelay
	s.mu.Unlock()

	go func() {
		time.Sleep(delay)
		onConnect(userToken, true)
	}()
	return handle, nil
}

func (s *InProcessServer) ClearChannel(handle uintptr) error {
	s.mu.Lock()
	delete(s.channels, handle)
	s.mu.Unlock()
	return nil
}

func (s *InProcessServer) ArrayGetCallback(handle uintptr, ft FieldType, fmtGroup Format, count int, userToken uintptr, onGet GetCallback) error {
	s.mu.Lock()
	ch, ok := s.channels[handle]
	var pv *testPV
	if ok {
		pv = s.pvs[ch.name]
	}
	s.mu.Unlock()
	if pv == nil {
		go onGet(userToken, StatusDisconnected, nil)
		return nil
	}
	go func() {
		s.mu.Lock()
		payload := buildPayload(fmtGroup, pv.raw)
		s.mu.Unlock()
		onGet(userToken, StatusNormal, payload)
	}()
	return nil
}

func (s *InProcessServer) ArrayPutCallback(handle uintptr, ft FieldType, count int, raw []byte, userToken uintptr, onPut PutCallback) error {
	s.mu.Lock()
	ch, ok := s.channels[handle]
	var pv *testPV
	if ok {
		pv = s.pvs[ch.name]
	}
	if pv != nil {
		pv.raw = raw
		pv.ft = ft
		pv.count = count
	}
	subs := make([]*testSub, 0, len(pvSubs(pv)))
	subs = append(subs, pvSubs(pv)...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub := sub
		go func() {
			s.mu.Lock()
			payload := buildPayload(sub.fmtGroup, raw)
			s.mu.Unlock()
			sub.onUpdate(sub.token, StatusNormal, payload)
		}()
	}

	if onPut != nil {
		go onPut(userToken, StatusNormal)
	}
	return nil
}

func pvSubs(pv *testPV) []*testSub {
	if pv == nil {
		return nil
	}
	out := make([]*testSub, 0, len(pv.subs))
	for _, sub := range pv.subs {
		out = append(out, sub)
	}
	return out
}

func (s *InProcessServer) CreateSubscription(handle uintptr, ft FieldType, fmtGroup Format, count int, userToken uintptr, onUpdate SubscriptionCallback) (uintptr, error) {
	s.mu.Lock()
	ch, ok := s.channels[handle]
	if !ok {
		s.mu.Unlock()
		return 0, &CAError{Func: "CreateSubscription", Status: StatusDisconnected}
	}
	pv := s.pvs[ch.name]
	s.nextHandle++
	subHandle := s.nextHandle
	sub := &testSub{token: userToken, ft: ft, fmtGroup: fmtGroup, count: count, onUpdate: onUpdate}
	pv.subs[subHandle] = sub
	initial := buildPayload(fmtGroup, pv.raw)
	s.mu.Unlock()

	go onUpdate(userToken, StatusNormal, initial)
	return subHandle, nil
}

func (s *InProcessServer) ClearSubscription(subHandle uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pv := range s.pvs {
		delete(pv.subs, subHandle)
	}
	return nil
}

func (s *InProcessServer) FlushIO() error { return nil }

// Disconnect simulates the server dropping an already-connected channel
// for pv, invoking every matching channel's ConnectCallback with
// connected=false on a background goroutine, the same way a real CA
// library reports a link going down. Test-only: spec §1 treats the wire
// protocol (and therefore connection loss detection) as an external
// boundary.
func (s *InProcessServer) Disconnect(pv string) {
	s.mu.Lock()
	var matches []*testChannel
	for _, ch := range s.channels {
		if ch.name == pv {
			matches = append(matches, ch)
		}
	}
	s.mu.Unlock()
	for _, ch := range matches {
		ch := ch
		go ch.onConnect(ch.token, false)
	}
}

func (s *InProcessServer) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// buildPayload prepends whatever status/time header fmtGroup requires
// ahead of the plain native-format bytes, using a zero status/severity
// and the current time for the timestamp — enough to exercise Decode's
// header parsing without modeling the full graphic/control limit
// fields (see dbr.go's Decode doc comment).
func buildPayload(fmtGroup Format, raw []byte) []byte {
	if fmtGroup == FormatNative {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}
	header := make([]byte, 4)
	if fmtGroup == FormatTime {
		header = make([]byte, 12)
		now := time.Now().UTC().Sub(epicsEpoch)
		binary.BigEndian.PutUint32(header[4:8], uint32(now/time.Second))
		binary.BigEndian.PutUint32(header[8:12], uint32(now%time.Second))
	}
	out := make([]byte, len(header)+len(raw))
	copy(out, header)
	copy(out[len(header):], raw)
	return out
}
