package services

import "testing"

func TestRoleValid(t *testing.T) {
	valid := []Role{RoleClient, RoleVolunteer, RoleTherapist, RoleAdmin, RoleNewUser}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false; want true", r)
		}
	}
	for _, r := range []Role{"", "superuser", "CLIENT"} {
		if r.Valid() {
			t.Errorf("Role(%q).Valid() = true; want false", r)
		}
	}
}

func TestCallerAuthenticated(t *testing.T) {
	cases := []struct {
		name string
		c    *Caller
		want bool
	}{
		{"nil", nil, false},
		{"zero id", &Caller{Role: RoleClient, IsApproved: true}, false},
		{"invalid role", &Caller{ID: 1, Role: "x", IsApproved: true}, false},
		{"unapproved", &Caller{ID: 1, Role: RoleClient}, false},
		{"banned", &Caller{ID: 1, Role: RoleClient, IsApproved: true, IsBanned: true}, false},
		{"ok", &Caller{ID: 1, Role: RoleClient, IsApproved: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Authenticated(); got != tc.want {
				t.Fatalf("Authenticated() = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestCallerIsVolunteer(t *testing.T) {
	if !(volunteer(1)).IsVolunteer() {
		t.Fatalf("volunteer caller should report IsVolunteer")
	}
	if (client(1)).IsVolunteer() {
		t.Fatalf("client caller should not report IsVolunteer")
	}
	var nilCaller *Caller
	if nilCaller.IsVolunteer() {
		t.Fatalf("nil caller should not report IsVolunteer")
	}
}
