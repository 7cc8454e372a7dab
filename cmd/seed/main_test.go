package main

import (
	"testing"

	"github.com/shinyyama/lynxx-backend/internal/model"
)

func TestBuildSeedUsers(t *testing.T) {
	users := buildSeedUsers(42)
	seen := map[string]bool{}
	roles := map[model.Role]int{}
	for _, u := range users {
		if seen[u.UID] {
			t.Fatalf("duplicate uid %s", u.UID)
		}
		seen[u.UID] = true
		roles[u.Role]++
		if u.Role == model.RoleEarner && u.Credits != 0 {
			t.Fatalf("earner %s should not get credits", u.UID)
		}
	}
	if roles[model.RoleSeeker] == 0 || roles[model.RoleEarner] == 0 {
		t.Fatalf("need both roles, got %v", roles)
	}
	if users[0].Credits != 42 {
		t.Fatalf("first seeker credits = %d", users[0].Credits)
	}
}

func TestSeedCredits(t *testing.T) {
	t.Setenv("SEED_CREDITS", "")
	if got := seedCredits(); got != 100 {
		t.Fatalf("default = %d", got)
	}
	t.Setenv("SEED_CREDITS", "7")
	if got := seedCredits(); got != 7 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("SEED_CREDITS", "nope")
	if got := seedCredits(); got != 100 {
		t.Fatalf("bad value = %d", got)
	}
}
