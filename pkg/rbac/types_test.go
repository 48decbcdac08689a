package rbac

import "testing"

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"admin", true},
		{"content-editors", true},
		{"team-2", true},
		{"a", true},
		{"", false},
		{"Editors", false},
		{"two words", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--hyphen", false},
		{"under_score", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := ValidSlug(tt.slug); got != tt.want {
				t.Errorf("ValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
			}
		})
	}
}

func TestGrantGlobal(t *testing.T) {
	global := Grant{Permission: "posts.view"}
	if !global.Global() {
		t.Error("Expected grant without resource to be global")
	}

	scoped := Grant{Permission: "posts.view", ResourceType: strPtr("post"), ResourceID: strPtr("1")}
	if scoped.Global() {
		t.Error("Expected scoped grant not to be global")
	}
}

func TestCheckScoped(t *testing.T) {
	if (Check{UserID: 1, Permission: "posts.view"}).Scoped() {
		t.Error("Expected plain check to be global")
	}
	if !(Check{UserID: 1, Permission: "posts.view", ResourceType: strPtr("post"), ResourceID: strPtr("1")}).Scoped() {
		t.Error("Expected resource check to be scoped")
	}
	// Half-specified resource does not count as scoped.
	if (Check{UserID: 1, Permission: "posts.view", ResourceType: strPtr("post")}).Scoped() {
		t.Error("Expected half-specified check not to be scoped")
	}
}
