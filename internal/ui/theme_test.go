package ui

import (
	"testing"

	"github.com/zsprackett/stockchat/internal/progress"
	"github.com/zsprackett/stockchat/internal/transcript"
)

func TestRoleStyleDistinct(t *testing.T) {
	roles := []transcript.Role{
		transcript.RoleUser, transcript.RolePending, transcript.RoleAgent,
		transcript.RoleError, transcript.RoleSystem,
	}
	seen := map[string]transcript.Role{}
	for _, r := range roles {
		icon, _ := RoleStyle(r)
		if icon == "" {
			t.Errorf("%s: empty icon", r)
		}
		if prev, ok := seen[icon]; ok {
			t.Errorf("%s shares icon %q with %s", r, icon, prev)
		}
		seen[icon] = r
	}
}

func TestRoleStyleErrorIsRed(t *testing.T) {
	_, c := RoleStyle(transcript.RoleError)
	if c != ColorError {
		t.Errorf("error role color: %v", c)
	}
}

func TestKindStyle(t *testing.T) {
	start, _ := KindStyle(progress.KindStart)
	end, _ := KindStyle(progress.KindEnd)
	if start == end {
		t.Error("start and end should be drawn differently")
	}
}

func TestColorTag(t *testing.T) {
	if got := colorTag(ColorPrimary); got != "[#89b4fa]" {
		t.Errorf("got %q", got)
	}
}
