package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/templan/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dotted name", "Foo.__init__", "Foo.__init__"},
		{"signature no special", "run(self) -> None", "run(self) -> None"},
		{"keyword signature", "user=u", "user=u"},
		{"attribute reference", "order_item.id", "order_item.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	entries := []model.UsageEntry{
		{
			Template: "Welcome",
			Invocations: []model.InvocationSite{
				{Template: "Welcome", File: "app/mail.py", Signature: "user=u"},
				{Template: "Welcome", File: "app/views.py", Signature: "user=u, cycle=c"},
			},
			References: []string{"user.name"},
		},
		{
			Template: "TeamDigest",
			Invocations: []model.InvocationSite{
				{Template: "TeamDigest", File: "app/team.py", Signature: "team=t"},
			},
		},
	}

	got := Encode(entries)
	want := []string{
		"templates[2]{template,invocations,references}:",
		"  Welcome,2,1",
		"  TeamDigest,1,0",
		"invocations[3]{template,file,signature}:",
		"  Welcome,app/mail.py,user=u",
		`  Welcome,app/views.py,"user=u, cycle=c"`,
		"  TeamDigest,app/team.py,team=t",
		"references[1]{template,expression}:",
		"  Welcome,user.name",
	}

	lines := strings.Split(got, "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(nil)
	for _, section := range []string{
		"templates[0]{template,invocations,references}:",
		"invocations[0]{template,file,signature}:",
		"references[0]{template,expression}:",
	} {
		if !strings.Contains(got, section) {
			t.Errorf("expected %q, got:\n%s", section, got)
		}
	}
}
