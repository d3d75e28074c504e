package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/mcdev12/burgerrush/go/internal/game/session"
)

const everyone = "*"

type delivery struct {
	to      string
	event   events.Name
	payload any
}

type fakeGateway struct {
	ch chan delivery
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{ch: make(chan delivery, 256)}
}

func (g *fakeGateway) SendToAll(event events.Name, payload any) {
	g.ch <- delivery{to: everyone, event: event, payload: payload}
}

func (g *fakeGateway) SendToCaller(callerID string, event events.Name, payload any) {
	g.ch <- delivery{to: callerID, event: event, payload: payload}
}

func (g *fakeGateway) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-g.ch:
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

func (g *fakeGateway) expect(t *testing.T, to string, event events.Name) delivery {
	t.Helper()
	d := g.next(t)
	if d.to != to || d.event != event {
		t.Fatalf("got %s to %q, want %s to %q", d.event, d.to, event, to)
	}
	return d
}

func (g *fakeGateway) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case d := <-g.ch:
		t.Fatalf("unexpected %s to %q", d.event, d.to)
	default:
	}
}

// countingCountdown records how many runs were spawned without running a clock
type countingCountdown struct {
	mu     sync.Mutex
	leases []session.Lease
}

func (c *countingCountdown) Run(_ context.Context, lease session.Lease) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leases = append(c.leases, lease)
}

func (c *countingCountdown) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.leases)
}

type harness struct {
	state   *session.State
	gateway *fakeGateway
	clock   *clockwork.FakeClock
	router  *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	state := session.NewState()
	gateway := newFakeGateway()
	clock := clockwork.NewFakeClock()
	countdown := session.NewCountdown(state, gateway, session.WithClock(clock))

	return &harness{
		state:   state,
		gateway: gateway,
		clock:   clock,
		router:  New(ctx, state, countdown, gateway, DefaultConfig()),
	}
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("countdown not waiting: %v", err)
	}
	h.clock.Advance(session.DefaultInterval)
}

func (h *harness) expectUpdate(t *testing.T, want int) {
	t.Helper()
	d := h.gateway.expect(t, everyone, events.Update)
	if got := d.payload.(events.UpdatePayload).Time; got != want {
		t.Fatalf("update time = %d, want %d", got, want)
	}
}

func TestStartRunsCountdownToFinish(t *testing.T) {
	h := newHarness(t)

	h.router.Dispatch("c1", events.Start, json.RawMessage(`{"seconds":3}`))

	started := h.gateway.expect(t, "c1", events.Started)
	if got := started.payload.(events.StartedPayload).Seconds; got != 3 {
		t.Fatalf("started seconds = %d, want 3", got)
	}

	h.expectUpdate(t, 3)
	h.tick(t)
	h.expectUpdate(t, 2)
	h.tick(t)
	h.expectUpdate(t, 1)
	h.tick(t)

	finished := h.gateway.expect(t, everyone, events.Finished)
	if msg := finished.payload.(events.FinishedPayload).Msg; msg == "" {
		t.Fatal("finished carries no message")
	}
	if h.state.Running() {
		t.Fatal("session still running")
	}
}

func TestStartThenStopHaltsUpdates(t *testing.T) {
	h := newHarness(t)

	h.router.Dispatch("c1", events.Start, json.RawMessage(`{"seconds":120}`))
	h.gateway.expect(t, "c1", events.Started)
	h.expectUpdate(t, 120)

	h.router.Dispatch("c1", events.Stop, nil)
	stopped := h.gateway.expect(t, "c1", events.Stopped)
	if stopped.payload.(events.StoppedPayload).Msg == "" {
		t.Fatal("stopped carries no message")
	}

	h.tick(t)
	h.gateway.expect(t, everyone, events.Finished)

	// give a stray loop a chance to emit before asserting silence
	time.Sleep(20 * time.Millisecond)
	h.gateway.expectNothing(t)
}

func TestDuplicateStartIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := session.NewState()
	gateway := newFakeGateway()
	countdown := &countingCountdown{}
	r := New(ctx, state, countdown, gateway, DefaultConfig())

	r.Dispatch("c1", events.Start, json.RawMessage(`{"seconds":10}`))
	gateway.expect(t, "c1", events.Started)

	r.Dispatch("c2", events.Start, json.RawMessage(`{"seconds":50}`))
	r.Dispatch("c1", events.Start, nil)

	time.Sleep(20 * time.Millisecond)
	gateway.expectNothing(t)

	if got := countdown.count(); got != 1 {
		t.Fatalf("spawned %d countdowns, want 1", got)
	}
	if got := state.Remaining(); got != 10 {
		t.Fatalf("remaining = %d, want 10", got)
	}
}

func TestDuplicateStartDoesNotDoubleDecrement(t *testing.T) {
	h := newHarness(t)

	h.router.Dispatch("c1", events.Start, json.RawMessage(`{"seconds":5}`))
	h.gateway.expect(t, "c1", events.Started)
	h.expectUpdate(t, 5)

	h.router.Dispatch("c2", events.Start, json.RawMessage(`{"seconds":5}`))
	h.tick(t)
	h.expectUpdate(t, 4)

	if got := h.state.Remaining(); got != 4 {
		t.Fatalf("remaining = %d, want 4", got)
	}
}

func TestStartPayloadDefaults(t *testing.T) {
	cases := []struct {
		name string
		data string
		want int
	}{
		{"missing payload", ``, 120},
		{"empty object", `{}`, 120},
		{"null seconds", `{"seconds":null}`, 120},
		{"string seconds", `{"seconds":"ten"}`, 120},
		{"fractional seconds", `{"seconds":1.5}`, 120},
		{"not an object", `[1,2]`, 120},
		{"integral float", `{"seconds":30.0}`, 30},
		{"negative clamps to zero", `{"seconds":-5}`, 0},
		{"above max clamps", `{"seconds":999999}`, 3600},
		{"beyond int32 clamps", `{"seconds":3000000000}`, 3600},
		{"quoted number", `{"seconds":"30"}`, 120},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			gateway := newFakeGateway()
			r := New(ctx, session.NewState(), &countingCountdown{}, gateway, DefaultConfig())

			var data json.RawMessage
			if tc.data != "" {
				data = json.RawMessage(tc.data)
			}
			r.Dispatch("c1", events.Start, data)

			d := gateway.expect(t, "c1", events.Started)
			if got := d.payload.(events.StartedPayload).Seconds; got != tc.want {
				t.Fatalf("seconds = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStopAndFinishAreIdempotent(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		h.router.Dispatch("c1", events.Stop, nil)
		h.gateway.expect(t, "c1", events.Stopped)
	}
	for i := 0; i < 3; i++ {
		h.router.Dispatch("c2", events.Finish, json.RawMessage(`{}`))
		d := h.gateway.expect(t, "c2", events.Finished)
		if d.payload.(events.FinishedPayload).Msg == "" {
			t.Fatal("finished carries no message")
		}
	}

	snap := h.state.Snapshot()
	if snap.Running || snap.Remaining != 0 {
		t.Fatalf("unexpected terminal state %+v", snap)
	}
}

func TestFieldUpdateRebroadcastVerbatim(t *testing.T) {
	h := newHarness(t)
	payload := json.RawMessage(`{"grid":[[1,0],[0,1]],"who":"c1"}`)

	h.router.Dispatch("c1", events.FieldUpdate, payload)

	d := h.gateway.expect(t, everyone, events.FieldUpdate)
	if got := string(d.payload.(json.RawMessage)); got != string(payload) {
		t.Fatalf("payload = %s, want %s", got, payload)
	}
}

func TestScoreUpdatesBroadcastFullTable(t *testing.T) {
	h := newHarness(t)

	h.router.Dispatch("c1", events.ScoreUpdate, json.RawMessage(`{"sid":"alice","score":5}`))
	h.gateway.expect(t, everyone, events.ScoreUpdate)

	h.router.Dispatch("c2", events.ScoreUpdate, json.RawMessage(`{"sid":"bob","score":7}`))
	d := h.gateway.expect(t, everyone, events.ScoreUpdate)

	scores := d.payload.(events.ScoresPayload)
	if len(scores) != 2 || scores["alice"] != 5 || scores["bob"] != 7 {
		t.Fatalf("scores = %v", scores)
	}
}

func TestScoreUpdatePayloads(t *testing.T) {
	cases := []struct {
		name      string
		data      string
		wantSID   string
		wantScore int
	}{
		{"missing payload", ``, "anon", 0},
		{"empty object", `{}`, "anon", 0},
		{"string score", `{"sid":"p","score":"lots"}`, "p", 0},
		{"quoted numeric score", `{"sid":"p","score":"5"}`, "p", 0},
		{"fractional score", `{"sid":"p","score":2.5}`, "p", 0},
		{"null score", `{"sid":"p","score":null}`, "p", 0},
		{"negative score", `{"sid":"p","score":-12}`, "p", -12},
		{"beyond int32", `{"sid":"p","score":3000000000}`, "p", 3000000000},
		{"beyond int32 negative", `{"sid":"p","score":-3000000000}`, "p", -3000000000},
		{"integral float", `{"sid":"p","score":7.0}`, "p", 7},
		{"exponent literal", `{"sid":"p","score":1e3}`, "p", 1000},
		{"numeric sid", `{"sid":42,"score":1}`, "anon", 1},
		{"null sid", `{"sid":null,"score":1}`, "anon", 1},
		{"empty sid kept", `{"sid":"","score":4}`, "", 4},
		{"not an object", `"hello"`, "anon", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)

			var data json.RawMessage
			if tc.data != "" {
				data = json.RawMessage(tc.data)
			}
			h.router.Dispatch("c1", events.ScoreUpdate, data)

			d := h.gateway.expect(t, everyone, events.ScoreUpdate)
			scores := d.payload.(events.ScoresPayload)
			got, ok := scores[tc.wantSID]
			if len(scores) != 1 || !ok || got != tc.wantScore {
				t.Fatalf("scores = %v, want %q:%d", scores, tc.wantSID, tc.wantScore)
			}
		})
	}
}

func TestLargeScoreLastWriteWins(t *testing.T) {
	h := newHarness(t)

	h.router.Dispatch("c1", events.ScoreUpdate, json.RawMessage(`{"sid":"p","score":5}`))
	h.gateway.expect(t, everyone, events.ScoreUpdate)
	h.router.Dispatch("c1", events.ScoreUpdate, json.RawMessage(`{"sid":"p","score":3000000000}`))
	h.gateway.expect(t, everyone, events.ScoreUpdate)

	if got := h.state.Snapshot().Scores["p"]; got != 3000000000 {
		t.Fatalf("scores[p] = %d, want 3000000000", got)
	}
}

func TestJoinSendsSnapshotToCaller(t *testing.T) {
	h := newHarness(t)
	h.state.SetScore("alice", 3)

	h.router.Join("c9")

	d := h.gateway.expect(t, "c9", events.State)
	p := d.payload.(events.StatePayload)
	if p.Running || p.Time != 0 || p.Scores["alice"] != 3 {
		t.Fatalf("state payload = %+v", p)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	h := newHarness(t)
	h.router.Dispatch("c1", events.Name("dance"), json.RawMessage(`{}`))
	h.gateway.expectNothing(t)
}
