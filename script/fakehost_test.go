package script

import "github.com/signalforge/engine/signal"

// testHost is a minimal in-memory stand-in for worker.Runtime/uiRuntime,
// implementing the full UIHost surface so the same fake can back both
// Host-only and UIHost-only tests. Every method just records what was
// called so a test can assert against it directly.
type testHost struct {
	runningFlag bool

	signals       map[string]float64
	signalHistory map[string][]signal.Point
	signalIDs     map[string]uint32
	nextSignalID  uint32

	parsers         map[string]func([]byte) bool
	packetCallbacks map[string][]func(float64) (float64, bool)

	toggles       map[string]bool
	textInputs    map[string]string
	buttonClicked map[string]bool

	cleanups       []func()
	frameCallbacks []func()
	alerts         []fakeAlert

	frameNum  uint64
	deltaTime float64
	plotCount int
}

type fakeAlert struct {
	name     string
	cooldown float64
	cond     func() bool
	action   func()
}

func newTestHost() *testHost {
	return &testHost{
		signals:         make(map[string]float64),
		signalHistory:   make(map[string][]signal.Point),
		signalIDs:       make(map[string]uint32),
		parsers:         make(map[string]func([]byte) bool),
		packetCallbacks: make(map[string][]func(float64) (float64, bool)),
		toggles:         make(map[string]bool),
		textInputs:      make(map[string]string),
		buttonClicked:   make(map[string]bool),
	}
}

func (h *testHost) CurrentTimeSeconds() float64 { return 0 }
func (h *testHost) IsAppRunning() bool          { return h.runningFlag }
func (h *testHost) SpawnTask(fnName string) error {
	return nil
}
func (h *testHost) SpawnWorker(source string) (uint64, error) { return 0, nil }

func (h *testHost) GetSignalID(name string) (uint32, error) {
	if id, ok := h.signalIDs[name]; ok {
		return id, nil
	}
	h.nextSignalID++
	h.signalIDs[name] = h.nextSignalID
	return h.nextSignalID, nil
}

func (h *testHost) UpdateSignal(name string, t, v float64) error {
	h.signals[name] = v
	h.signalHistory[name] = append(h.signalHistory[name], signal.Point{Time: t, Value: v})
	return nil
}

func (h *testHost) UpdateSignalFast(id uint32, t, v float64) error { return nil }

func (h *testHost) GetSignal(name string) (float64, bool) {
	v, ok := h.signals[name]
	return v, ok
}

func (h *testHost) GetSignalHistory(name string, n int) []signal.Point {
	hist := h.signalHistory[name]
	if n <= 0 || n >= len(hist) {
		return hist
	}
	return hist[len(hist)-n:]
}

func (h *testHost) SignalExists(name string) bool {
	_, ok := h.signals[name]
	return ok
}

func (h *testHost) CreateSignal(name string) error {
	if _, ok := h.signals[name]; !ok {
		h.signals[name] = 0
	}
	return nil
}

func (h *testHost) IsSignalActive(name string) bool { return h.SignalExists(name) }
func (h *testHost) ClearAllSignals()                { h.signals = make(map[string]float64) }
func (h *testHost) SetDefaultSignalMode(live bool)  {}

func (h *testHost) RegisterParser(name string, call func(buf []byte) bool) {
	h.parsers[name] = call
}

func (h *testHost) SharedBufferBytes() []byte { return nil }

func (h *testHost) OnPacket(packetKind, derivedName string, fn func(t float64) (float64, bool)) {
	h.packetCallbacks[packetKind] = append(h.packetCallbacks[packetKind], fn)
}

func (h *testHost) TriggerPacketCallbacks(packetKind string, t float64) {
	for _, fn := range h.packetCallbacks[packetKind] {
		fn(t)
	}
}

func (h *testHost) HasPacketCallback(packetKind string) bool {
	return len(h.packetCallbacks[packetKind]) > 0
}

func (h *testHost) GetToggleState(title string) bool    { return h.toggles[title] }
func (h *testHost) GetTextInput(title string) string     { return h.textInputs[title] }
func (h *testHost) GetButtonClicked(title string) bool    { return h.buttonClicked[title] }
func (h *testHost) SetToggleState(title string, v bool)   { h.toggles[title] = v }
func (h *testHost) SetTextInput(title string, v string)   { h.textInputs[title] = v }
func (h *testHost) SetImageBuffer(title string, data []byte) {}

func (h *testHost) OnCleanup(fn func()) { h.cleanups = append(h.cleanups, fn) }

func (h *testHost) OnFrame(fn func()) { h.frameCallbacks = append(h.frameCallbacks, fn) }

func (h *testHost) OnAlert(name string, cooldownSeconds float64, cond func() bool, action func()) {
	h.alerts = append(h.alerts, fakeAlert{name: name, cooldown: cooldownSeconds, cond: cond, action: action})
}

func (h *testHost) FrameNumber() uint64 { return h.frameNum }
func (h *testHost) DeltaTime() float64  { return h.deltaTime }
func (h *testHost) PlotCount() int      { return h.plotCount }

var (
	_ Host   = (*testHost)(nil)
	_ UIHost = (*testHost)(nil)
)
