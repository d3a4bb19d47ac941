package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dialoq/hotline/internal/core"
	"github.com/dialoq/hotline/internal/domain"
)

func newTestRouter() *Router {
	reg := NewRegistry()
	return &Router{
		Registry:  reg,
		Presence:  NewPresence(),
		Calls:     NewCallTable(),
		Broadcast: NewBroadcaster(reg, SimplePolicy{}),
	}
}

// msg builds the payload bytes and the full raw envelope for one message.
func msg(kind core.Kind, payload string) (data []byte, raw core.Frame) {
	return []byte(payload), core.Frame(fmt.Sprintf(`{"type":%q,"data":%s}`, kind, payload))
}

func registerOperator(t *testing.T, rt *Router, id string) (*fakeConn, core.ConnID) {
	t.Helper()
	conn := &fakeConn{}
	h := rt.Registry.Register(conn)
	rt.Registration(context.Background(), h, []byte(fmt.Sprintf(`{"operator_id":%q}`, id)))
	return conn, h
}

func registerCaller(t *testing.T, rt *Router, id string) (*fakeConn, core.ConnID) {
	t.Helper()
	conn := &fakeConn{}
	h := rt.Registry.Register(conn)
	rt.PresenceUpdate(context.Background(), h, []byte(fmt.Sprintf(`{"party_id":%q,"status":"available"}`, id)))
	return conn, h
}

// TestCallScenario walks the canonical happy path: an operator takes its
// seat, a customer rings, the operator accepts, an opaque offer is relayed,
// and finally the operator vanishes mid-call.
func TestCallScenario(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	opConn, opHandle := registerOperator(t, rt, "OPER001")
	custConn, _ := registerCaller(t, rt, "CUST001")
	opConn.reset()
	custConn.reset()

	// Customer rings without a target: every operator hears it.
	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_1","caller":{"id":"CUST001","name":"John Doe"}}`)
	custHandle, _, _ := rt.Presence.Lookup("CUST001")
	rt.CallInitiate(ctx, custHandle, data, raw)

	if got := opConn.kinds(t); len(got) != 1 || got[0] != core.KindCallInitiate {
		t.Fatalf("operator frames = %v, want [call_initiate]", got)
	}
	if custConn.count() != 0 {
		t.Fatalf("caller received %d frames on its own initiate", custConn.count())
	}
	opConn.reset()

	// Operator accepts: the caller hears it, responder is pinned.
	data, raw = msg(core.KindCallAccept, `{"call_id":"call_1"}`)
	rt.CallAccept(ctx, opHandle, data, raw)

	if got := custConn.kinds(t); len(got) != 1 || got[0] != core.KindCallAccept {
		t.Fatalf("caller frames = %v, want [call_accept]", got)
	}
	sess, ok := rt.Calls.Get("call_1")
	if !ok || sess.Responder != "OPER001" || sess.State != StateActive {
		t.Fatalf("session = %+v, want active with responder OPER001", sess)
	}
	custConn.reset()
	opConn.reset()

	// Opaque offer goes to the counterpart only.
	data, raw = msg(core.KindSessionOffer, `{"call_id":"call_1","offer":{"sdp":"v=0..."}}`)
	rt.Negotiation(ctx, custHandle, core.KindSessionOffer, data, raw)

	if got := opConn.kinds(t); len(got) != 1 || got[0] != core.KindSessionOffer {
		t.Fatalf("operator frames = %v, want [session_offer]", got)
	}
	if custConn.count() != 0 {
		t.Fatal("offer echoed back to its sender")
	}
	opConn.reset()

	// Operator disconnects mid-call: session is removed, the survivor gets
	// one offline broadcast and one synthesized call_end.
	rt.OnDisconnect(ctx, opHandle)

	if got := custConn.kinds(t); len(got) != 2 || got[0] != core.KindPresenceUpdate || got[1] != core.KindCallEnd {
		t.Fatalf("survivor frames = %v, want [presence_update call_end]", got)
	}
	var end CallControlPayload
	custConn.lastData(t, &end)
	if end.CallID != "call_1" {
		t.Errorf("synthesized call_end for %q, want call_1", end.CallID)
	}
	if rt.Calls.Count() != 0 {
		t.Errorf("sessions left = %d, want 0", rt.Calls.Count())
	}
}

func TestCallerInitiateRingsOnlyOperators(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	op1, _ := registerOperator(t, rt, "OPER001")
	op2, _ := registerOperator(t, rt, "OPER002")
	otherCust, _ := registerCaller(t, rt, "CUST002")
	custConn, custHandle := registerCaller(t, rt, "CUST001")
	for _, c := range []*fakeConn{op1, op2, otherCust, custConn} {
		c.reset()
	}

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_9","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)

	for i, op := range []*fakeConn{op1, op2} {
		if got := op.kinds(t); len(got) != 1 || got[0] != core.KindCallInitiate {
			t.Errorf("operator %d frames = %v, want [call_initiate]", i+1, got)
		}
	}
	if otherCust.count() != 0 {
		t.Error("another caller was rung by a caller-role initiate")
	}
}

func TestOperatorInitiateTargetsOneParty(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	_, opHandle := registerOperator(t, rt, "OPER001")
	op2, _ := registerOperator(t, rt, "OPER002")
	custConn, _ := registerCaller(t, rt, "CUST001")
	op2.reset()
	custConn.reset()

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_2","caller":{"id":"OPER001"},"receiver":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, opHandle, data, raw)

	if got := custConn.kinds(t); len(got) != 1 || got[0] != core.KindCallInitiate {
		t.Fatalf("target frames = %v, want [call_initiate]", got)
	}
	if op2.count() != 0 {
		t.Error("targeted initiate leaked to another operator")
	}
}

func TestOperatorInitiateOfflineTargetDroppedSilently(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	opConn, opHandle := registerOperator(t, rt, "OPER001")
	opConn.reset()

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_3","caller":{"id":"OPER001"},"receiver":{"id":"CUST404"}}`)
	rt.CallInitiate(ctx, opHandle, data, raw)

	// Dropped with a local diagnostic only; the sender sees no error.
	if opConn.count() != 0 {
		t.Fatalf("sender received %d frames, want 0", opConn.count())
	}
	if _, ok := rt.Calls.Get("call_3"); !ok {
		t.Fatal("session should exist even when the ring was dropped")
	}
}

func TestDuplicateAcceptIsIgnored(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	_, op1Handle := registerOperator(t, rt, "OPER001")
	op2Conn, op2Handle := registerOperator(t, rt, "OPER002")
	custConn, custHandle := registerCaller(t, rt, "CUST001")

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_1","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)
	custConn.reset()
	op2Conn.reset()

	data, raw = msg(core.KindCallAccept, `{"call_id":"call_1"}`)
	rt.CallAccept(ctx, op1Handle, data, raw)

	// The idle operator hears the acceptance so it can stop ringing.
	if got := op2Conn.kinds(t); len(got) != 1 || got[0] != core.KindCallAccept {
		t.Fatalf("idle operator frames = %v, want [call_accept]", got)
	}
	custConn.reset()

	// A second acceptance must not steal the call or reach the caller.
	rt.CallAccept(ctx, op2Handle, data, raw)

	sess, _ := rt.Calls.Get("call_1")
	if sess.Responder != "OPER001" {
		t.Errorf("responder = %q, want OPER001 (first wins)", sess.Responder)
	}
	if custConn.count() != 0 {
		t.Errorf("caller received %d frames from duplicate accept", custConn.count())
	}
}

func TestDeclineBeforeAcceptReachesInitiator(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	_, opHandle := registerOperator(t, rt, "OPER001")
	custConn, custHandle := registerCaller(t, rt, "CUST001")

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_1","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)
	custConn.reset()

	data, raw = msg(core.KindCallDecline, `{"call_id":"call_1"}`)
	rt.CallDecline(ctx, opHandle, data, raw)

	if got := custConn.kinds(t); len(got) != 1 || got[0] != core.KindCallDecline {
		t.Fatalf("caller frames = %v, want [call_decline]", got)
	}
	if _, ok := rt.Calls.Get("call_1"); ok {
		t.Fatal("declined session should be removed")
	}

	// Late operations on the removed id are silent no-ops.
	custConn.reset()
	rt.CallEnd(ctx, opHandle, data, raw)
	if custConn.count() != 0 {
		t.Error("late call_end on a removed session produced traffic")
	}
}

func TestUnacceptedCallRelaysNoNegotiation(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	opConn, _ := registerOperator(t, rt, "OPER001")
	_, custHandle := registerCaller(t, rt, "CUST001")

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_1","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)
	opConn.reset()

	data, raw = msg(core.KindSessionOffer, `{"call_id":"call_1","offer":{}}`)
	rt.Negotiation(ctx, custHandle, core.KindSessionOffer, data, raw)

	if opConn.count() != 0 {
		t.Fatal("negotiation relayed before the call was accepted")
	}
}

func TestMalformedPayloadGetsErrorNotice(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	conn := &fakeConn{}
	h := rt.Registry.Register(conn)

	rt.Registration(ctx, h, []byte(`{"operator_id":""}`))

	if conn.count() != 1 {
		t.Fatalf("frames = %d, want exactly one error notice", conn.count())
	}
	var notice struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(conn.frames[0], &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.Type != "error" || notice.Error == "" {
		t.Errorf("notice = %+v, want type error", notice)
	}
	if _, _, ok := rt.Registry.Identity(h); ok {
		t.Fatal("malformed registration must not mutate state")
	}
}

func TestPresenceUpdateDoesNotChangeRole(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()

	_, opHandle := registerOperator(t, rt, "OPER001")
	rt.PresenceUpdate(ctx, opHandle, []byte(`{"party_id":"OPER001","status":"busy"}`))

	_, role, ok := rt.Presence.Lookup("OPER001")
	if !ok || role != domain.RoleOperator {
		t.Fatalf("role = %v after status update, want operator", role)
	}
}

func TestCallInitiateRateLimited(t *testing.T) {
	ctx := context.Background()
	rt := newTestRouter()
	rt.Limiter = NewCallRateLimiter(1, time.Minute)

	registerOperator(t, rt, "OPER001")
	custConn, custHandle := registerCaller(t, rt, "CUST001")
	custConn.reset()

	data, raw := msg(core.KindCallInitiate, `{"call_id":"call_1","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)
	data, raw = msg(core.KindCallInitiate, `{"call_id":"call_2","caller":{"id":"CUST001"}}`)
	rt.CallInitiate(ctx, custHandle, data, raw)

	if rt.Calls.Count() != 1 {
		t.Fatalf("sessions = %d, want 1 (second initiate limited)", rt.Calls.Count())
	}
	if got := custConn.kinds(t); len(got) != 1 || got[0] != core.KindError {
		t.Fatalf("caller frames = %v, want [error]", got)
	}
}
