package domain

import "testing"

func TestTableNames(t *testing.T) {
	if got := (Chat{}).TableName(); got != "chats" {
		t.Fatalf("Chat table = %q", got)
	}
	if got := (Message{}).TableName(); got != "messages" {
		t.Fatalf("Message table = %q", got)
	}
	if got := (BlockRecord{}).TableName(); got != "block_records" {
		t.Fatalf("BlockRecord table = %q", got)
	}
	if got := (ChatReport{}).TableName(); got != "chat_reports" {
		t.Fatalf("ChatReport table = %q", got)
	}
	if got := (Idempotency{}).TableName(); got != "idempotency" {
		t.Fatalf("Idempotency table = %q", got)
	}
}

func TestChatTypeValid(t *testing.T) {
	if !ChatTypeRegular.Valid() || !ChatTypeRoleplay.Valid() {
		t.Fatal("known chat types must be valid")
	}
	if ChatType("group").Valid() {
		t.Fatal("unknown chat type must be invalid")
	}
}

func TestMessageTypeValid(t *testing.T) {
	if !MessageClientToVolunteer.Valid() || !MessageVolunteerToClient.Valid() {
		t.Fatal("known message types must be valid")
	}
	if MessageType("SYSTEM").Valid() {
		t.Fatal("unknown message type must be invalid")
	}
}

func TestChatParticipants(t *testing.T) {
	vol := int64(7)
	c := &Chat{ClientID: 3}

	if c.Matched() {
		t.Fatal("chat without volunteer must be unmatched")
	}
	if !c.IsParticipant(3) {
		t.Fatal("client must be a participant")
	}
	if c.IsParticipant(7) {
		t.Fatal("unassigned volunteer must not be a participant")
	}

	c.VolunteerID = &vol
	if !c.Matched() {
		t.Fatal("chat with volunteer must be matched")
	}
	if !c.IsParticipant(7) {
		t.Fatal("assigned volunteer must be a participant")
	}
	if c.IsParticipant(99) {
		t.Fatal("stranger must not be a participant")
	}
}
