package domain

import "testing"

func TestDirectPairKey_Canonical(t *testing.T) {
	if DirectPairKey("a", "b") != DirectPairKey("b", "a") {
		t.Fatal("pair key must be order-independent")
	}
	if got, want := DirectPairKey("u2", "u1"), "u1:u2"; got != want {
		t.Fatalf("DirectPairKey = %q, want %q", got, want)
	}
}

func TestUser_Ref(t *testing.T) {
	u := User{ID: "id-1", Username: "alice", Email: "a@example.com", PasswordHash: "x"}
	ref := u.Ref()
	if ref.ID != "id-1" || ref.Username != "alice" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():            "users",
		Follow{}.TableName():          "follows",
		FollowRequest{}.TableName():   "follow_requests",
		Chat{}.TableName():            "chats",
		ChatParticipant{}.TableName(): "chat_participants",
		Message{}.TableName():         "messages",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("table name %q, want %q", got, want)
		}
	}
}
