package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/services"
)

func volunteerCaller() *services.Caller {
	return &services.Caller{ID: 9, Role: services.RoleVolunteer, IsApproved: true}
}

func TestPostBlock_OK(t *testing.T) {
	sessionID := uuid.NewString()
	blocks := &fakeBlockSvc{out: &domain.BlockRecord{ID: uuid.NewString(), BlockerID: 9, BlockedID: 5}}
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, blocks, &fakeReportSvc{}, nil, nil)
	r := newTestRouter(h, volunteerCaller())

	w := doJSON(t, r, http.MethodPost, "/blocks", PostBlockRequest{BlockedID: 5, SessionID: sessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if blocks.blockedID != 5 || blocks.chatID != sessionID {
		t.Fatalf("service saw blocked=%d chat=%q", blocks.blockedID, blocks.chatID)
	}
}

func TestPostBlock_RepeatStillOK(t *testing.T) {
	// A repeated block returns a null record but succeeds.
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{out: nil}, &fakeReportSvc{}, nil, nil)
	r := newTestRouter(h, volunteerCaller())

	w := doJSON(t, r, http.MethodPost, "/blocks", PostBlockRequest{BlockedID: 5, SessionID: uuid.NewString()})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PostBlockResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Record != nil {
		t.Fatalf("expected null record, got %+v", resp.Record)
	}
}

func TestPostBlock_ClientForbidden(t *testing.T) {
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{err: services.ErrUnauthorized}, &fakeReportSvc{}, nil, nil)
	r := newTestRouter(h, testCaller())

	w := doJSON(t, r, http.MethodPost, "/blocks", PostBlockRequest{BlockedID: 5, SessionID: uuid.NewString()})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", w.Code)
	}
}

func TestPostBlock_BadPayloads(t *testing.T) {
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{}, &fakeReportSvc{}, nil, nil)
	r := newTestRouter(h, volunteerCaller())

	if w := doJSON(t, r, http.MethodPost, "/blocks", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/blocks", PostBlockRequest{BlockedID: 5, SessionID: "nope"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad session id: status = %d", w.Code)
	}
}

func TestPostReport_Created(t *testing.T) {
	id := uuid.NewString()
	reports := &fakeReportSvc{out: &domain.ChatReport{ID: uuid.NewString(), ChatID: id, FiledByID: 1}}
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{}, reports, nil, nil)
	r := newTestRouter(h, testCaller())

	w := doJSON(t, r, http.MethodPost, "/sessions/"+id+"/report", PostReportRequest{Report: "went badly"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestPostReport_DuplicateConflict(t *testing.T) {
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{}, &fakeReportSvc{err: services.ErrDuplicateReport}, nil, nil)
	r := newTestRouter(h, testCaller())

	w := doJSON(t, r, http.MethodPost, "/sessions/"+uuid.NewString()+"/report", PostReportRequest{Report: "again"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
}

func TestPostReport_MissingBody(t *testing.T) {
	h := New(&fakeSessionSvc{}, &fakeMsgSvc{}, &fakeBlockSvc{}, &fakeReportSvc{}, nil, nil)
	r := newTestRouter(h, testCaller())

	w := doJSON(t, r, http.MethodPost, "/sessions/"+uuid.NewString()+"/report", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}
