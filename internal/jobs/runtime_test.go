package jobs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/rationalmind/rationalmind-backend/internal/types"
)

type staticHandler struct{ jobType string }

func (h *staticHandler) Type() string       { return h.jobType }
func (h *staticHandler) Run(*Context) error { return nil }

func TestRegistryRejectsDuplicatesAndEmptyTypes(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&staticHandler{jobType: "a"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&staticHandler{jobType: "a"}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := r.Register(&staticHandler{jobType: ""}); err == nil {
		t.Fatalf("empty type should fail")
	}
	if err := r.Register(nil); err == nil {
		t.Fatalf("nil handler should fail")
	}

	if _, ok := r.Get("a"); !ok {
		t.Fatalf("registered handler not found")
	}
	if _, ok := r.Get("b"); ok {
		t.Fatalf("unknown type should not resolve")
	}
}

func TestContextPayloadUUID(t *testing.T) {
	id := uuid.New()
	job := &types.JobRun{Payload: datatypes.JSON(`{"session_id":"` + id.String() + `","bad":"nope"}`)}
	jc := NewContext(context.Background(), nil, job, nil)

	got, ok := jc.PayloadUUID("session_id")
	if !ok || got != id {
		t.Fatalf("PayloadUUID = (%v, %v), want (%v, true)", got, ok, id)
	}
	if _, ok := jc.PayloadUUID("bad"); ok {
		t.Fatalf("non-uuid value should not parse")
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatalf("missing key should not parse")
	}
}

func TestContextMalformedPayloadIsEmpty(t *testing.T) {
	job := &types.JobRun{Payload: datatypes.JSON(`{broken`)}
	jc := NewContext(context.Background(), nil, job, nil)
	if len(jc.Payload()) != 0 {
		t.Fatalf("malformed payload should decode to empty map")
	}
}
